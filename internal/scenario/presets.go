package scenario

import (
	"time"
)

// BasicScenario は基本シナリオ設定を返す
// 2ワーカーに100個の値を流し、1〜20msのランダムな処理時間をかける
func BasicScenario() Config {
	return Config{
		Name:             "basic",
		Description:      "Two workers, 100 values, 1-20ms random processing time",
		Workers:          2,
		Items:            100,
		Burst:            1,
		MinDelay:         1 * time.Millisecond,
		MaxDelay:         20 * time.Millisecond,
		ProgressInterval: 1 * time.Second,
	}
}

// StressScenario は高負荷シナリオを返す
// 処理時間なしで大量のアイテムを投入する
func StressScenario() Config {
	return Config{
		Name:             "stress",
		Description:      "Eight workers, 10000 items, no processing delay",
		Workers:          8,
		Items:            10000,
		Burst:            1,
		ProgressInterval: 1 * time.Second,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:             "quick",
		Description:      "Quick test for verification",
		Workers:          4,
		Items:            200,
		Burst:            1,
		MinDelay:         0,
		MaxDelay:         2 * time.Millisecond,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// SingleScenario は1ワーカーのシナリオを返す
// 全アイテムが到着順に処理される
func SingleScenario() Config {
	return Config{
		Name:             "single",
		Description:      "Single worker, every dispatch waits for the previous item",
		Workers:          1,
		Items:            50,
		Burst:            1,
		MinDelay:         0,
		MaxDelay:         1 * time.Millisecond,
		ProgressInterval: 1 * time.Second,
	}
}

// ThrottledScenario はレート制限付きシナリオを返す
// プロデューサー側が律速になる
func ThrottledScenario() Config {
	return Config{
		Name:             "throttled",
		Description:      "Rate-limited producer at 500 items/s, workers mostly idle",
		Workers:          4,
		Items:            500,
		Rate:             500,
		Burst:            10,
		MinDelay:         1 * time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// ChaosScenario は障害注入シナリオを返す
// プロセッサに panic と遅延を注入し、停止したワーカーを除いて処理が続くことを確認する
func ChaosScenario() Config {
	return Config{
		Name:             "chaos",
		Description:      "Four workers with injected processor panics and delays",
		Workers:          4,
		Items:            1000,
		Burst:            1,
		MinDelay:         0,
		MaxDelay:         2 * time.Millisecond,
		PanicRate:        0.01,
		MaxPanics:        2,
		DelayRate:        0.05,
		FaultDelay:       10 * time.Millisecond,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"basic":     BasicScenario,
		"stress":    StressScenario,
		"quick":     QuickScenario,
		"single":    SingleScenario,
		"throttled": ThrottledScenario,
		"chaos":     ChaosScenario,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "stress", "quick", "single", "throttled", "chaos"}
}
