package worker

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
	"fixed-pool/internal/metrics"
)

// Processor はワークアイテムごとに1回呼ばれる処理関数
type Processor[T any] func(item T)

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Name string // ログ・イベント・メトリクスで使う名前
	Size int    // ワーカー数（0以下でCPU数）
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name: "pool",
		Size: 0, // CPU数
	}
}

// ResolveSize は指定サイズを実際のワーカー数に変換する。0以下ならCPU数
func ResolveSize(size int) int {
	if size <= 0 {
		return runtime.NumCPU()
	}
	return size
}

// Pool は固定数のワーカーゴルーチンを管理する
type Pool[T any] struct {
	name    string
	size    int
	proc    Processor[T]
	workers []*Worker[T]

	lifecycleMu sync.Mutex
	prepared    atomic.Bool
	joined      atomic.Bool

	// 空きワーカー通知。ワーカーが Ready に戻るたびに idleSeq を進める
	idleMu   sync.Mutex
	idleCond *sync.Cond
	idleSeq  uint64

	failed atomic.Int32
	parks  atomic.Uint64

	log       *logger.Logger
	bus       events.Publisher
	metrics   *metrics.Metrics
	collector *metrics.Collector
	onPanic   func(*PanicError)
}

// NewPool は新しいワーカープールを作成する
// size が 0 以下の場合は CPU 数を使用
func NewPool[T any](size int, proc Processor[T], opts ...Option[T]) *Pool[T] {
	config := DefaultPoolConfig()
	config.Size = size
	return NewPoolWithConfig(config, proc, opts...)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する。
// Prepare を呼ぶまでゴルーチンは起動しない
func NewPoolWithConfig[T any](config PoolConfig, proc Processor[T], opts ...Option[T]) *Pool[T] {
	if proc == nil {
		panic(ErrNilProcessor)
	}

	size := ResolveSize(config.Size)
	name := config.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool[T]{
		name:    name,
		size:    size,
		proc:    proc,
		log:     logger.Default,
		metrics: metrics.New(),
	}
	p.idleCond = sync.NewCond(&p.idleMu)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name はプール名を返す
func (p *Pool[T]) Name() string {
	return p.name
}

// Size はワーカー数を返す
func (p *Pool[T]) Size() int {
	return p.size
}

// Metrics は常時収集メトリクスを返す
func (p *Pool[T]) Metrics() *metrics.Metrics {
	return p.metrics
}

// Prepare は Size 個のワーカーを Ready で作成し、それぞれのゴルーチンを起動する。
// プールごとに1回だけ呼べる
func (p *Pool[T]) Prepare() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.prepared.Load() {
		fatal("prepare", ErrAlreadyPrepared)
	}

	p.workers = make([]*Worker[T], p.size)
	for i := range p.size {
		p.workers[i] = newWorker[T](i)
	}
	// workers の書き込みは prepared の Store より前に完了させる
	p.prepared.Store(true)

	for _, w := range p.workers {
		go p.run(w)
	}

	p.log.Info(p.name, "WorkerPool prepared with %d workers", p.size)
	p.publish(events.NewPoolPreparedEvent(p.name, p.size))
}

// Dispatch はアイテムを最初に見つかった空きワーカーに渡す。
// ワーカーが受け取るまで戻らない。全ワーカーが処理中なら、どれかが
// Ready に戻るまで待機する（スピンはしない）。
//
// 選ばれるワーカーはスキャン時点のインデックス順で決まり、
// 並行する Dispatch 呼び出し間の公平性は保証しない
func (p *Pool[T]) Dispatch(item T) {
	p.mustAccept("dispatch")

	start := time.Now()
	for {
		seq := p.idleSnapshot()
		claimed, contended := p.claimAny(item, start)
		if claimed {
			return
		}
		if int(p.failed.Load()) == p.size {
			fatal("dispatch", ErrNoLiveWorkers)
		}
		p.mustAccept("dispatch")
		if contended {
			// Ready のワーカーがロック中だっただけなので待機せずに再スキャンする
			runtime.Gosched()
			continue
		}
		p.waitIdle(seq)
	}
}

// TryDispatch は1回だけスキャンし、空きワーカーが無ければ false を返す。
// 再試行は呼び出し側の責任
func (p *Pool[T]) TryDispatch(item T) bool {
	p.mustAccept("dispatch")
	claimed, _ := p.claimAny(item, time.Now())
	return claimed
}

// Join は全ワーカーをインデックス順に停止し、各ゴルーチンの終了を待つ。
// Dispatch の呼び出しが全て終わった後に1回だけ呼べる。
// 受け取り済みでまだ処理されていないアイテムは停止前に処理される
func (p *Pool[T]) Join() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.prepared.Load() {
		fatal("join", ErrNotPrepared)
	}
	if p.joined.Swap(true) {
		fatal("join", ErrAlreadyJoined)
	}
	if len(p.workers) != p.size {
		fatal("join", fmt.Errorf("%w: have %d, want %d", ErrSizeMismatch, len(p.workers), p.size))
	}

	// 待機中の Dispatch を起こして終了済みを観測させる
	p.notifyIdle()

	for _, w := range p.workers {
		w.mu.Lock()
		for w.state == StateRunning {
			w.cond.Wait()
		}
		if w.state != StateStopped {
			w.setState(StateStopped)
			w.cond.Broadcast()
		}
		w.mu.Unlock()

		<-w.done
	}

	processed := p.metrics.Processed()
	p.log.Info(p.name, "WorkerPool joined (processed: %d, failed workers: %d)",
		processed, p.failed.Load())
	p.publish(events.NewPoolJoinedEvent(p.name, processed))
}

// run はワーカーごとのディスパッチループ
func (p *Pool[T]) run(w *Worker[T]) {
	defer close(w.done)

	component := p.workerComponent(w)
	p.collector.WorkerStarted()
	defer p.collector.WorkerExited()
	p.log.Debug(component, "Worker started")
	p.publish(events.NewWorkerStartedEvent(p.name, w.id))

	var perr *PanicError

	w.mu.Lock()
	for {
		for w.state == StateReady {
			w.cond.Wait()
		}
		if w.state == StateStopped {
			break
		}

		// StateRunning: mu を保持したまま処理する
		p.recordClaim(component, w)
		perr = p.process(w, w.item)
		if perr != nil {
			w.release(StateStopped)
			break
		}
		w.release(StateReady)

		w.mu.Unlock()
		p.notifyIdle()
		w.mu.Lock()
	}
	processed := w.processed
	w.mu.Unlock()

	if perr != nil {
		p.failed.Add(1)
		// 全滅した場合に待機中の Dispatch を起こす
		p.notifyIdle()
		p.log.Error(component, "Worker terminated by processor panic: %v\n%s", perr.Value, perr.Stack)
		p.publish(events.NewWorkerFailedEvent(p.name, w.id, perr))
		if p.onPanic != nil {
			p.onPanic(perr)
		}
		return
	}

	p.log.Debug(component, "Worker stopped (processed: %d)", processed)
	p.publish(events.NewWorkerStoppedEvent(p.name, w.id, processed))
}

// process はプロセッサを1回呼び、panic を回収する
func (p *Pool[T]) process(w *Worker[T], item T) (perr *PanicError) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if r := recover(); r != nil {
			perr = &PanicError{
				Pool:     p.name,
				WorkerID: w.id,
				Value:    r,
				Stack:    debug.Stack(),
			}
			p.metrics.RecordFailed(elapsed)
			p.collector.ObserveProcessed(elapsed, true)
			return
		}
		p.metrics.RecordProcessed(elapsed)
		p.collector.ObserveProcessed(elapsed, false)
	}()

	p.proc(item)
	return nil
}

// claimAny はインデックス順に空きワーカーを探して item を設置する。
// ロックを取れないワーカーはこのパスでは飛ばす。飛ばしたワーカーのうち
// Ready のものがあれば contended を返す（待機前のロック保持や他の Dispatch の
// 受け渡し中で、idleSeq の通知は来ない）
func (p *Pool[T]) claimAny(item T, start time.Time) (claimed, contended bool) {
	for _, w := range p.workers {
		if !w.mu.TryLock() {
			if w.observedState() == StateReady {
				contended = true
			}
			continue
		}
		ok := w.claim(item)
		w.mu.Unlock()

		if ok {
			wait := time.Since(start)
			p.metrics.RecordDispatch(wait)
			p.collector.ObserveDispatch(wait)
			return true, contended
		}
	}
	return false, contended
}

// recordClaim はワーカー側で受け取りを確認した時のログ
func (p *Pool[T]) recordClaim(component string, w *Worker[T]) {
	p.log.Debug(component, "Processing item (claimed %v ago)", time.Since(w.claimedAt))
}

// idleSnapshot はスキャン前の通知番号を返す
func (p *Pool[T]) idleSnapshot() uint64 {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	return p.idleSeq
}

// waitIdle は seq から通知番号が進むまで待機する
func (p *Pool[T]) waitIdle(seq uint64) {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()

	if p.idleSeq != seq || p.joined.Load() {
		return
	}
	p.parks.Add(1)
	p.collector.ObservePark()
	for p.idleSeq == seq && !p.joined.Load() {
		p.idleCond.Wait()
	}
}

// notifyIdle は通知番号を進めて待機中の Dispatch を起こす
func (p *Pool[T]) notifyIdle() {
	p.idleMu.Lock()
	p.idleSeq++
	p.idleMu.Unlock()
	p.idleCond.Broadcast()
}

// mustAccept は Dispatch 可能な状態かを検査する
func (p *Pool[T]) mustAccept(op string) {
	if !p.prepared.Load() {
		fatal(op, ErrNotPrepared)
	}
	if p.joined.Load() {
		fatal(op, ErrJoined)
	}
}

func (p *Pool[T]) publish(event events.Event) {
	if p.bus != nil {
		p.bus.Publish(event)
	}
}

func (p *Pool[T]) workerComponent(w *Worker[T]) string {
	return fmt.Sprintf("%s/worker-%d", p.name, w.id)
}
