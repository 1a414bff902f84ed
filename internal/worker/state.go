package worker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State はワーカーの状態を表す
type State int32

const (
	// StateReady はアイテムを受け付け可能な状態
	StateReady State = iota
	// StateRunning はアイテムを保持し処理中（または処理待ち）の状態
	StateRunning
	// StateStopped は終端状態
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker は専用ゴルーチンと単一スロットの作業状態
//
// item/hasItem/state は mu を保持している間だけ読み書きする。
// hasItem は state == StateRunning のときに限り true。
type Worker[T any] struct {
	id int

	mu        sync.Mutex
	cond      *sync.Cond
	item      T
	hasItem   bool
	state     State
	claimedAt time.Time
	processed uint64

	// 観測用のミラー。mu 保持中にのみ更新する
	observed      atomic.Int32
	processedSeen atomic.Uint64

	done chan struct{}
}

func newWorker[T any](id int) *Worker[T] {
	w := &Worker[T]{
		id:    id,
		state: StateReady,
		done:  make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	w.observed.Store(int32(StateReady))
	return w
}

// ID はワーカー番号を返す
func (w *Worker[T]) ID() int {
	return w.id
}

// setState は状態と観測用ミラーを更新する（mu 保持中）
func (w *Worker[T]) setState(s State) {
	w.state = s
	w.observed.Store(int32(s))
}

// observedState はロックを取らずに直近の状態を返す
func (w *Worker[T]) observedState() State {
	return State(w.observed.Load())
}

// claim はアイテムを設置して Running に遷移させる（mu 保持中）
func (w *Worker[T]) claim(item T) bool {
	if w.state != StateReady {
		return false
	}
	w.item = item
	w.hasItem = true
	w.claimedAt = time.Now()
	w.setState(StateRunning)
	w.cond.Broadcast()
	return true
}

// release はスロットを空にして次の状態へ遷移させる（mu 保持中）
func (w *Worker[T]) release(next State) {
	var zero T
	w.item = zero
	w.hasItem = false
	w.processed++
	w.processedSeen.Store(w.processed)
	w.setState(next)
	w.cond.Broadcast()
}

// WorkerInfo はワーカーの観測スナップショット
type WorkerInfo struct {
	ID        int    `json:"id"`
	State     string `json:"state"`
	Processed uint64 `json:"processed"`
}

func (w *Worker[T]) info() WorkerInfo {
	return WorkerInfo{
		ID:        w.id,
		State:     w.observedState().String(),
		Processed: w.processedSeen.Load(),
	}
}
