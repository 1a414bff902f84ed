package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: defaultMaxLatencySamples,
	}
}

// Metrics はワークアイテム処理のメトリクスを収集する
type Metrics struct {
	processed      atomic.Uint64
	failed         atomic.Uint64
	totalLatencyNs atomic.Uint64
	totalWaitNs    atomic.Uint64
	dispatched     atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowProcessed   uint64
	latencies         []time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	maxSamples := config.MaxLatencySamples
	if maxSamples <= 0 {
		maxSamples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, maxSamples),
		maxLatencySamples: maxSamples,
	}
}

// RecordDispatch はディスパッチ（ワーカー確保までの待ち時間）を記録する
func (m *Metrics) RecordDispatch(wait time.Duration) {
	m.dispatched.Add(1)
	m.totalWaitNs.Add(uint64(wait.Nanoseconds()))
}

// RecordProcessed は正常に処理されたアイテムを記録する
func (m *Metrics) RecordProcessed(latency time.Duration) {
	m.processed.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowProcessed++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordFailed はプロセッサがpanicしたアイテムを記録する
func (m *Metrics) RecordFailed(latency time.Duration) {
	m.processed.Add(1)
	m.failed.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowProcessed++
	m.mu.Unlock()
}

// Dispatched はワーカーに渡されたアイテム数を返す
func (m *Metrics) Dispatched() uint64 {
	return m.dispatched.Load()
}

// Processed はプロセッサ呼び出しが完了したアイテム数を返す（失敗含む）
func (m *Metrics) Processed() uint64 {
	return m.processed.Load()
}

// Failed はpanicで終わったアイテム数を返す
func (m *Metrics) Failed() uint64 {
	return m.failed.Load()
}

// Throughput は直近ウィンドウの秒間処理数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowProcessed) / elapsed
}

// OverallThroughput は開始からの平均秒間処理数を返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.processed.Load()) / elapsed
}

// AverageLatency は平均処理時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.processed.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// AverageWait はディスパッチの平均待ち時間を返す
func (m *Metrics) AverageWait() time.Duration {
	total := m.dispatched.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalWaitNs.Load() / total)
}

// P99Latency はP99処理時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	sorted := slices.Clone(m.latencies)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// FailureRate は失敗率を返す（0.0〜1.0）
func (m *Metrics) FailureRate() float64 {
	total := m.processed.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failed.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowProcessed = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Dispatched        uint64        `json:"dispatched"`
	Processed         uint64        `json:"processed"`
	Failed            uint64        `json:"failed"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageLatency    time.Duration `json:"average_latency"`
	AverageWait       time.Duration `json:"average_wait"`
	P99Latency        time.Duration `json:"p99_latency"`
	FailureRate       float64       `json:"failure_rate"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Dispatched:        m.Dispatched(),
		Processed:         m.Processed(),
		Failed:            m.Failed(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageLatency:    m.AverageLatency(),
		AverageWait:       m.AverageWait(),
		P99Latency:        m.P99Latency(),
		FailureRate:       m.FailureRate(),
		Elapsed:           time.Since(m.startTime),
	}
}
