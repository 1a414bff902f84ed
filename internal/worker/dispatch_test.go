package worker

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixed-pool/internal/events"
	"fixed-pool/internal/metrics"
)

type payload struct {
	value   int
	another float64
}

// joinWithin は Join がタイムアウト内に戻ることを確認する
func joinWithin[T any](t *testing.T, pool *Pool[T], timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		pool.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("Join did not return within %v", timeout)
	}
}

func TestDispatchTwoWorkersTenValues(t *testing.T) {
	var (
		mu      sync.Mutex
		results []int
	)
	pool := NewPool(2, func(p payload) {
		mu.Lock()
		results = append(results, p.value)
		mu.Unlock()
	}, WithLogger[payload](quietLogger()))
	pool.Prepare()

	for i := range 10 {
		pool.Dispatch(payload{value: i, another: float64(i * i)})
	}
	joinWithin(t, pool, 5*time.Second)

	// 到着順は問わない。集合として一致すればよい
	require.Len(t, results, 10)
	sort.Ints(results)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, results)
}

func TestDispatchStressEveryItemOnce(t *testing.T) {
	const items = 10000

	counts := make([]atomic.Int32, items)
	var total atomic.Int64
	pool := NewPool(8, func(i int) {
		counts[i].Add(1)
		total.Add(1)
	}, WithLogger[int](quietLogger()))
	pool.Prepare()

	for i := range items {
		pool.Dispatch(i)
	}
	joinWithin(t, pool, 30*time.Second)

	require.EqualValues(t, items, total.Load())
	for i := range counts {
		if n := counts[i].Load(); n != 1 {
			t.Fatalf("item %d processed %d times", i, n)
		}
	}
	assert.EqualValues(t, items, pool.Stats().Metrics.Dispatched)
}

func TestDispatchWithSlowProcessor(t *testing.T) {
	// ばらつきのある処理時間を持つプロセッサ
	var (
		mu   sync.Mutex
		seen = make(map[int]int)
	)
	pool := NewPool(2, func(i int) {
		time.Sleep(time.Duration(1+i%5) * time.Millisecond)
		mu.Lock()
		seen[i]++
		mu.Unlock()
	}, WithLogger[int](quietLogger()))
	pool.Prepare()

	for i := range 100 {
		pool.Dispatch(i)
	}
	joinWithin(t, pool, 10*time.Second)

	require.Len(t, seen, 100)
	for i, n := range seen {
		assert.Equalf(t, 1, n, "item %d", i)
	}
	assert.Positive(t, pool.Stats().Parks, "producer should have parked while both workers were busy")
}

func TestDispatchReturnsAfterClaim(t *testing.T) {
	blocker := make(chan struct{})
	pool := NewPool(2, func(int) { <-blocker }, WithLogger[int](quietLogger()))
	pool.Prepare()

	pool.Dispatch(1)

	// Dispatch が戻った時点でワーカーは Running になっている
	stats := pool.Stats()
	assert.Equal(t, 1, stats.BusyWorkers)
	assert.Equal(t, 1, stats.IdleWorkers)

	states := pool.WorkerStates()
	require.Len(t, states, 2)
	assert.Equal(t, "running", states[0].State, "lowest index idle worker is claimed first")
	assert.Equal(t, "ready", states[1].State)

	close(blocker)
	joinWithin(t, pool, 5*time.Second)
}

func TestDispatchWaitsForIdleWorker(t *testing.T) {
	blocker := make(chan struct{})
	pool := NewPool(1, func(int) { <-blocker }, WithLogger[int](quietLogger()))
	pool.Prepare()

	pool.Dispatch(1)

	returned := make(chan struct{})
	go func() {
		pool.Dispatch(2)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Dispatch returned while the only worker was busy")
	case <-time.After(50 * time.Millisecond):
	}

	require.Eventually(t, func() bool { return pool.Stats().Parks > 0 },
		time.Second, 5*time.Millisecond, "dispatcher should park instead of spinning")

	close(blocker)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after the worker became idle")
	}

	joinWithin(t, pool, 5*time.Second)
	assert.EqualValues(t, 2, pool.Stats().Metrics.Processed)
}

func TestJoinWaitsForInFlightItem(t *testing.T) {
	var finished atomic.Bool
	pool := NewPool(1, func(int) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}, WithLogger[int](quietLogger()))
	pool.Prepare()

	pool.Dispatch(1)
	pool.Join()

	assert.True(t, finished.Load(), "Join returned while the processor was still running")
}

func TestJoinProcessesClaimedItems(t *testing.T) {
	// Join 直前に受け取られたアイテムも失われない
	for range 50 {
		var processed atomic.Int64
		pool := NewPool(4, func(int) { processed.Add(1) }, WithLogger[int](quietLogger()))
		pool.Prepare()
		for i := range 4 {
			pool.Dispatch(i)
		}
		pool.Join()
		require.EqualValues(t, 4, processed.Load())
	}
}

func TestDispatchConcurrentProducers(t *testing.T) {
	const producers, perProducer = 4, 250

	var processed atomic.Int64
	pool := NewPool(3, func(int) { processed.Add(1) }, WithLogger[int](quietLogger()))
	pool.Prepare()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				pool.Dispatch(p*perProducer + i)
			}
		}()
	}
	wg.Wait()
	joinWithin(t, pool, 10*time.Second)

	assert.EqualValues(t, producers*perProducer, processed.Load())
}

func TestProcessorPanicStopsOnlyThatWorker(t *testing.T) {
	var (
		processed atomic.Int64
		handled   = make(chan *PanicError, 1)
	)
	pool := NewPool(2, func(i int) {
		if i == 3 {
			panic(errors.New("bad item"))
		}
		processed.Add(1)
	},
		WithLogger[int](quietLogger()),
		WithPanicHandler[int](func(perr *PanicError) { handled <- perr }),
	)
	pool.Prepare()

	for i := range 10 {
		pool.Dispatch(i)
	}
	joinWithin(t, pool, 5*time.Second)

	select {
	case perr := <-handled:
		assert.EqualError(t, perr.Unwrap(), "bad item")
		assert.NotEmpty(t, perr.Stack)
	default:
		t.Fatal("expected panic handler to be called")
	}

	stats := pool.Stats()
	assert.Equal(t, 1, stats.FailedWorkers)
	assert.EqualValues(t, 9, processed.Load())
	assert.EqualValues(t, 10, stats.Metrics.Processed)
	assert.EqualValues(t, 1, stats.Metrics.Failed)
}

func TestDispatchNoLiveWorkers(t *testing.T) {
	failed := make(chan struct{})
	pool := NewPool(1, func(int) { panic("boom") },
		WithLogger[int](quietLogger()),
		WithPanicHandler[int](func(*PanicError) { close(failed) }),
	)
	pool.Prepare()

	pool.Dispatch(1)
	<-failed

	expectFatal(t, ErrNoLiveWorkers, func() { pool.Dispatch(2) })
	joinWithin(t, pool, time.Second)
}

func TestPoolPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	pool := NewPoolWithConfig(PoolConfig{Name: "evt", Size: 2}, func(int) {},
		WithLogger[int](quietLogger()),
		WithEventBus[int](bus),
	)
	pool.Prepare()
	pool.Dispatch(1)
	pool.Join()

	counts := make(map[events.EventType]int)
	for {
		select {
		case ev := <-ch:
			assert.Equal(t, "evt", ev.Pool)
			counts[ev.Type]++
			continue
		default:
		}
		break
	}

	assert.Equal(t, 1, counts[events.EventPoolPrepared])
	assert.Equal(t, 2, counts[events.EventWorkerStarted])
	assert.Equal(t, 2, counts[events.EventWorkerStopped])
	assert.Equal(t, 1, counts[events.EventPoolJoined])
}

func TestPoolCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, "pool_test")
	require.NoError(t, err)

	shared := metrics.New()
	pool := NewPool(2, func(int) {},
		WithLogger[int](quietLogger()),
		WithCollector[int](collector),
		WithMetrics[int](shared),
	)
	pool.Prepare()
	for i := range 20 {
		pool.Dispatch(i)
	}
	pool.Join()

	assert.Same(t, shared, pool.Metrics())
	assert.EqualValues(t, 20, shared.Processed())

	n, err := testutil.GatherAndCount(reg, "pool_test_dispatched_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expected := `
# HELP pool_test_live_workers Worker goroutines that have not exited
# TYPE pool_test_live_workers gauge
pool_test_live_workers 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pool_test_live_workers"))
}
