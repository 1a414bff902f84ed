// Package scenario は固定サイズワーカープールの実行シナリオを提供する。
//
// シナリオエンジンはワーカープール、プロデューサー、結果コレクター、
// 障害注入（chaos）を
// 組み合わせて1回の実行を行い、全アイテムが1回ずつ処理されたことを検証する。
//
// # 機能
//
// - シナリオ定義と実行（実行ごとにUUIDのRun IDを付与）
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - basic: 2ワーカー、100アイテム、1〜20msの処理時間
// - stress: 8ワーカー、10000アイテム、処理時間なし
// - quick: 短時間の動作確認
// - single: 1ワーカーでの逐次処理
// - throttled: レート制限付きプロデューサー
// - chaos: プロセッサへの panic・遅延注入
//
// # 使用例
//
//	config := scenario.BasicScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
