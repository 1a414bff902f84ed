package worker

import (
	"bytes"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"fixed-pool/internal/logger"
)

// quietLogger はテスト出力を汚さないロガー
func quietLogger() *logger.Logger {
	return logger.New(&bytes.Buffer{}, logger.LevelError)
}

func newCountingPool(size int, counter *atomic.Int64) *Pool[int] {
	return NewPool(size, func(int) {
		counter.Add(1)
	}, WithLogger[int](quietLogger()))
}

// expectFatal は fn が target を包んだ error で panic することを確認する
func expectFatal(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic value, got %T: %v", r, r)
		}
		if !errors.Is(err, target) {
			t.Fatalf("expected %v, got %v", target, err)
		}
	}()
	fn()
}

func TestNewPool(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(4, &counter)
	if pool.Size() != 4 {
		t.Errorf("expected 4 workers, got %d", pool.Size())
	}

	// Zero should default to CPU count
	pool2 := newCountingPool(0, &counter)
	if pool2.Size() != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), pool2.Size())
	}
}

func TestNewPoolNegativeSize(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(-5, &counter)
	if pool.Size() != runtime.NumCPU() {
		t.Errorf("expected %d workers for negative input, got %d", runtime.NumCPU(), pool.Size())
	}
}

func TestNewPoolNilProcessor(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for nil processor")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, ErrNilProcessor) {
			t.Errorf("expected ErrNilProcessor, got %v", r)
		}
	}()
	NewPool[int](2, nil)
}

func TestNewPoolWithConfig(t *testing.T) {
	config := DefaultPoolConfig()
	config.Name = "demo"
	config.Size = 3

	pool := NewPoolWithConfig(config, func(string) {}, WithLogger[string](quietLogger()))
	if pool.Name() != "demo" {
		t.Errorf("expected name demo, got %s", pool.Name())
	}
	if pool.Size() != 3 {
		t.Errorf("expected 3 workers, got %d", pool.Size())
	}

	unnamed := NewPoolWithConfig(PoolConfig{Size: 1}, func(string) {})
	if unnamed.Name() != "pool" {
		t.Errorf("expected default name pool, got %s", unnamed.Name())
	}
}

func TestPoolPrepareJoin(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(2, &counter)

	pool.Prepare()
	pool.Join()

	if counter.Load() != 0 {
		t.Errorf("expected no processing, got %d", counter.Load())
	}
	for _, info := range pool.WorkerStates() {
		if info.State != "stopped" {
			t.Errorf("worker %d: expected stopped, got %s", info.ID, info.State)
		}
	}
}

func TestPoolJoinWithoutWorkTerminatesPromptly(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(8, &counter)
	pool.Prepare()

	done := make(chan struct{})
	go func() {
		pool.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Join on an idle pool")
	}
}

func TestPoolPrepareTwice(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(1, &counter)
	pool.Prepare()
	defer pool.Join()

	expectFatal(t, ErrAlreadyPrepared, pool.Prepare)
}

func TestPoolJoinTwice(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(1, &counter)
	pool.Prepare()
	pool.Join()

	expectFatal(t, ErrAlreadyJoined, pool.Join)
}

func TestPoolJoinBeforePrepare(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(1, &counter)

	expectFatal(t, ErrNotPrepared, pool.Join)
}

func TestPoolDispatchBeforePrepare(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(1, &counter)

	expectFatal(t, ErrNotPrepared, func() { pool.Dispatch(1) })
	expectFatal(t, ErrNotPrepared, func() { pool.TryDispatch(1) })
}

func TestPoolDispatchAfterJoin(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(2, &counter)
	pool.Prepare()
	pool.Join()

	expectFatal(t, ErrJoined, func() { pool.Dispatch(1) })
}

func TestPoolJoinSizeMismatch(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(2, &counter)
	pool.Prepare()

	// 内部不整合を作る
	all := pool.workers
	pool.workers = pool.workers[:1]
	defer func() {
		for _, w := range all {
			w.mu.Lock()
			w.setState(StateStopped)
			w.cond.Broadcast()
			w.mu.Unlock()
			<-w.done
		}
	}()

	expectFatal(t, ErrSizeMismatch, pool.Join)
}

func TestPoolDispatch(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(2, &counter)
	pool.Prepare()

	for i := range 10 {
		pool.Dispatch(i)
	}
	pool.Join()

	if counter.Load() != 10 {
		t.Errorf("expected 10 items processed, got %d", counter.Load())
	}
}

func TestPoolTryDispatchAllBusy(t *testing.T) {
	blocker := make(chan struct{})
	started := make(chan struct{})
	pool := NewPool(1, func(int) {
		close(started)
		<-blocker
	}, WithLogger[int](quietLogger()))
	pool.Prepare()

	if !pool.TryDispatch(1) {
		t.Fatal("expected idle worker to accept")
	}
	<-started

	if pool.TryDispatch(2) {
		t.Error("expected TryDispatch to fail while the only worker is busy")
	}

	close(blocker)
	pool.Join()
}

func TestPoolSkipsLockedReadyWorker(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(2, &counter)
	pool.Prepare()

	// ワーカー0を Ready のままロックしておく。スキャンは待たずに次へ進む
	w0 := pool.workers[0]
	w0.mu.Lock()

	done := make(chan struct{})
	go func() {
		pool.Dispatch(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		w0.mu.Unlock()
		t.Fatal("Dispatch blocked on a locked worker")
	}
	if w0.state != StateReady {
		t.Errorf("expected worker 0 to stay ready, got %v", w0.state)
	}

	w0.mu.Unlock()
	pool.Join()

	if counter.Load() != 1 {
		t.Errorf("expected 1 processed item, got %d", counter.Load())
	}
}

func TestPoolTryDispatchLockedOnlyWorker(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(1, &counter)
	pool.Prepare()

	w := pool.workers[0]
	w.mu.Lock()

	// 唯一のワーカーがロック中ならこのパスでは受け取れない
	if pool.TryDispatch(1) {
		t.Error("expected TryDispatch to skip the locked worker")
	}

	// Dispatch はロックが外れるまで再スキャンし、その後受け渡す
	done := make(chan struct{})
	go func() {
		pool.Dispatch(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Dispatch returned while the worker was locked")
	case <-time.After(20 * time.Millisecond):
	}

	w.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch did not claim the worker after it was unlocked")
	}

	pool.Join()
	if counter.Load() != 1 {
		t.Errorf("expected 1 processed item, got %d", counter.Load())
	}
}

func TestPoolStats(t *testing.T) {
	var counter atomic.Int64
	pool := newCountingPool(3, &counter)

	stats := pool.Stats()
	if stats.Prepared || stats.IdleWorkers != 0 {
		t.Errorf("expected unprepared stats, got %+v", stats)
	}
	if pool.WorkerStates() != nil {
		t.Error("expected no worker states before Prepare")
	}

	pool.Prepare()
	for i := range 5 {
		pool.Dispatch(i)
	}
	pool.Join()

	stats = pool.Stats()
	if !stats.Joined {
		t.Error("expected joined")
	}
	if stats.Size != 3 {
		t.Errorf("expected size 3, got %d", stats.Size)
	}
	if stats.Metrics.Dispatched != 5 || stats.Metrics.Processed != 5 {
		t.Errorf("expected 5 dispatched and processed, got %+v", stats.Metrics)
	}
	if stats.BusyWorkers != 0 || stats.IdleWorkers != 0 {
		t.Errorf("expected all workers stopped, got busy=%d idle=%d", stats.BusyWorkers, stats.IdleWorkers)
	}

	var total uint64
	for _, info := range pool.WorkerStates() {
		total += info.Processed
	}
	if total != 5 {
		t.Errorf("expected per-worker counts to sum to 5, got %d", total)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateReady, "ready"},
		{StateRunning, "running"},
		{StateStopped, "stopped"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &PanicError{Pool: "p", WorkerID: 1, Value: cause}
	if !errors.Is(err, cause) {
		t.Error("expected PanicError to unwrap an error value")
	}

	plain := &PanicError{Pool: "p", WorkerID: 1, Value: "text"}
	if plain.Unwrap() != nil {
		t.Error("expected nil unwrap for non-error value")
	}
	if plain.Error() != "p: worker 1: processor panic: text" {
		t.Errorf("unexpected message: %s", plain.Error())
	}
}

func TestResolveSize(t *testing.T) {
	if got := ResolveSize(3); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := ResolveSize(0); got != runtime.NumCPU() {
		t.Errorf("expected NumCPU (%d), got %d", runtime.NumCPU(), got)
	}
}
