// Package chaos はプロセッサへの障害注入機能を提供する。
//
// ChaosMonkeyはワーカープールのプロセッサを包み、確率的に panic や
// 遅延を注入する。panic を受けたワーカーはプールの方針に従って停止するため、
// 障害時にもアイテムが失われず重複もしないことを検証できる。
//
// # 障害タイプ
//
// - Panic: プロセッサ呼び出しを panic させる（上限 MaxPanics 回）
// - Delay: プロセッサ呼び出しの前に遅延を挿入する
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.PanicRate = 0.02
//	config.MaxPanics = size - 1 // 最低1ワーカーは残す
//
//	monkey := chaos.New(config)
//	pool := worker.NewPool(size, chaos.Wrap(monkey, process))
package chaos
