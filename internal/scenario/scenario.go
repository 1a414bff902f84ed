package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fixed-pool/internal/chaos"
	"fixed-pool/internal/collector"
	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
	"fixed-pool/internal/metrics"
	"fixed-pool/internal/producer"
	"fixed-pool/internal/worker"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyRunning は実行中のEngineを再度実行しようとした場合のエラー
	ErrAlreadyRunning = errors.New("scenario is already running")
	// ErrIncomplete は投入したアイテムが過不足なく処理されなかった場合のエラー
	ErrIncomplete = errors.New("scenario result is incomplete")
)

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名（プール名にも使う）
	Description string // 説明

	Workers int // ワーカー数（0でCPU数）
	Items   int // 投入するアイテム数

	// プロデューサー設定
	Rate  float64 // 秒間アイテム数（0で無制限）
	Burst int     // レート制限のバースト

	// 処理時間設定
	MinDelay time.Duration // 1アイテムあたりの処理時間の下限
	MaxDelay time.Duration // 1アイテムあたりの処理時間の上限

	// 障害注入設定
	PanicRate  float64       // プロセッサをpanicさせる確率
	MaxPanics  int           // panic注入の上限（ワーカー数-1に丸める）
	DelayRate  float64       // 遅延を注入する確率
	FaultDelay time.Duration // 注入する遅延

	ProgressInterval time.Duration // 進捗ログの間隔（0で1秒）
}

// chaosConfig は障害注入設定を返す。workers は実際のワーカー数
func (c Config) chaosConfig(workers int) chaos.Config {
	maxPanics := c.MaxPanics
	// 全ワーカーが停止すると Dispatch が続行できないので1つは残す
	if maxPanics > workers-1 {
		maxPanics = workers - 1
	}
	return chaos.Config{
		Name:          c.Name,
		PanicRate:     c.PanicRate,
		MaxPanics:     maxPanics,
		DelayRate:     c.DelayRate,
		DelayDuration: c.FaultDelay,
	}
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:             "default",
		Description:      "Default scenario",
		Workers:          0, // CPU数
		Items:            1000,
		Rate:             0,
		Burst:            1,
		MinDelay:         0,
		MaxDelay:         1 * time.Millisecond,
		ProgressInterval: 1 * time.Second,
	}
}

// Result はシナリオ実行結果
type Result struct {
	RunID        string
	ScenarioName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Cancelled    bool

	// プール構成
	Workers int
	Items   int

	// 処理統計
	Produced      uint64
	Processed     uint64
	Failed        uint64
	Faults        uint64
	FailedWorkers int
	Parks         uint64
	Throughput    float64
	AvgLatency    time.Duration
	P99Latency    time.Duration
	AvgWait       time.Duration

	// 検証結果
	Missing    []int
	Duplicates []int
	InOrder    bool
}

// Complete は投入済みアイテムが全て1回ずつプロセッサに渡されたかを返す。
// panic した呼び出しは値を記録しないので Missing の件数と一致する
func (r *Result) Complete() bool {
	return r.Processed == r.Produced &&
		uint64(len(r.Missing)) == r.Failed &&
		len(r.Duplicates) == 0
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config    Config
	eventBus  *events.Bus
	collector *metrics.Collector
	log       *logger.Logger

	mu       sync.RWMutex
	running  bool
	runID    string
	pool     *worker.Pool[producer.Item]
	producer *producer.Producer
	results  *collector.Collector
	monkey   *chaos.Monkey
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Default,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetMetricsCollector はPrometheusコレクターを設定する
func (e *Engine) SetMetricsCollector(c *metrics.Collector) {
	e.collector = c
}

// SetLogger はロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する。
// ctx がキャンセルされた場合は投入済みのアイテムを処理し終えてから
// Cancelled を立てた結果を返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.NewString()
	e.log.Info(e.config.Name, "=== Scenario '%s' started (run: %s) ===", e.config.Name, runID)
	e.log.Info(e.config.Name, "Description: %s", e.config.Description)

	result := &Result{
		RunID:        runID,
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
		Items:        e.config.Items,
	}

	pool, prod, results, monkey := e.setup(runID)
	result.Workers = pool.Size()

	pool.Prepare()
	e.publish(events.NewRunStartedEvent(pool.Name(), runID, pool.Size()))

	err := e.runScenario(ctx, pool, prod)

	// 受け取り済みのアイテムは Join が処理し終えるまで待つ
	pool.Join()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result, pool, prod, results)
	if monkey != nil {
		result.Faults = monkey.FaultCount()
	}
	e.publish(events.NewRunCompletedEvent(pool.Name(), runID, result.Processed))

	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("scenario failed: %w", err)
		}
		result.Cancelled = true
		e.log.Warn(e.config.Name, "Scenario cancelled after %d/%d items", result.Produced, result.Items)
	}

	if !result.Complete() {
		return result, fmt.Errorf("%w: produced %d, processed %d, missing %d, duplicates %d",
			ErrIncomplete, result.Produced, result.Processed, len(result.Missing), len(result.Duplicates))
	}

	e.log.Info(e.config.Name, "=== Scenario '%s' completed ===", e.config.Name)
	return result, nil
}

// setup はプール・プロデューサー・コレクターを組み立てる
func (e *Engine) setup(runID string) (*worker.Pool[producer.Item], *producer.Producer, *collector.Collector, *chaos.Monkey) {
	results := collector.NewWithCapacity(e.config.Items)

	process := func(item producer.Item) {
		if item.Delay > 0 {
			time.Sleep(item.Delay)
		}
		results.Record(item.Value)
	}

	// 障害注入
	var monkey *chaos.Monkey
	size := worker.ResolveSize(e.config.Workers)
	if cc := e.config.chaosConfig(size); cc.Enabled() {
		monkey = chaos.New(cc)
		monkey.SetLogger(e.log)
		if e.eventBus != nil {
			monkey.SetEventBus(e.eventBus)
		}
		process = chaos.Wrap(monkey, process)
	}

	opts := []worker.Option[producer.Item]{
		worker.WithLogger[producer.Item](e.log),
		worker.WithCollector[producer.Item](e.collector),
	}
	if e.eventBus != nil {
		opts = append(opts, worker.WithEventBus[producer.Item](e.eventBus))
	}

	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		Name: e.config.Name,
		Size: size,
	}, process, opts...)

	prod := producer.New(pool, producer.Config{
		Items:    e.config.Items,
		Rate:     e.config.Rate,
		Burst:    e.config.Burst,
		MinDelay: e.config.MinDelay,
		MaxDelay: e.config.MaxDelay,
	})
	prod.SetLogger(e.log)

	e.mu.Lock()
	e.runID = runID
	e.pool = pool
	e.producer = prod
	e.results = results
	e.monkey = monkey
	e.mu.Unlock()

	return pool, prod, results, monkey
}

// runScenario はプロデューサーと進捗レポーターを並行に動かす
func (e *Engine) runScenario(ctx context.Context, pool *worker.Pool[producer.Item], prod *producer.Producer) error {
	g, gctx := errgroup.WithContext(ctx)
	produced := make(chan struct{})

	g.Go(func() error {
		defer close(produced)
		return prod.Run(gctx)
	})

	g.Go(func() error {
		e.reportProgress(gctx, produced, pool, prod)
		return nil
	})

	return g.Wait()
}

// reportProgress は生成が終わるまで一定間隔で進捗をログ出力する
func (e *Engine) reportProgress(ctx context.Context, done <-chan struct{}, pool *worker.Pool[producer.Item], prod *producer.Producer) {
	interval := e.config.ProgressInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			stats := pool.Stats()
			e.log.Info(e.config.Name, "Progress: produced %d/%d, processed %d, busy %d/%d",
				prod.Produced(), e.config.Items, stats.Metrics.Processed, stats.BusyWorkers, stats.Size)
		}
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result, pool *worker.Pool[producer.Item], prod *producer.Producer, results *collector.Collector) {
	stats := pool.Stats()
	snapshot := stats.Metrics

	result.Produced = prod.Produced()
	result.Processed = snapshot.Processed
	result.Failed = snapshot.Failed
	result.FailedWorkers = stats.FailedWorkers
	result.Parks = stats.Parks
	result.Throughput = snapshot.OverallThroughput
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.AvgWait = snapshot.AverageWait

	result.Missing = results.Missing(int(result.Produced))
	result.Duplicates = results.Duplicates()
	result.InOrder = results.InOrder()
}

func (e *Engine) publish(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	status := "COMPLETE"
	switch {
	case !r.Complete():
		status = "INCOMPLETE"
	case r.Cancelled:
		status = "CANCELLED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Run ID:         %s
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Status:         %s

POOL
----
  Workers:          %d
  Failed Workers:   %d
  Dispatch Parks:   %d

PROCESSING METRICS
------------------
  Items:            %d
  Produced:         %d
  Processed:        %d
  Failed:           %d
  Injected Faults:  %d
  Throughput:       %.2f items/s
  Avg Latency:      %v
  P99 Latency:      %v
  Avg Dispatch Wait: %v

VERIFICATION
------------
  Missing:          %d
  Duplicates:       %d
  Arrival In Order: %t
`,
		r.ScenarioName,
		r.RunID,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		status,
		r.Workers,
		r.FailedWorkers,
		r.Parks,
		r.Items,
		r.Produced,
		r.Processed,
		r.Failed,
		r.Faults,
		r.Throughput,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.AvgWait.Round(time.Microsecond),
		len(r.Missing),
		len(r.Duplicates),
		r.InOrder,
	)

	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "  Missing Values:   %v\n", head(r.Missing, 20))
	}
	if len(r.Duplicates) > 0 {
		fmt.Fprintf(&b, "  Duplicate Values: %v\n", head(r.Duplicates, 20))
	}

	b.WriteString("\n================================================================================")
	return b.String()
}

func head(values []int, n int) []int {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// RunID は直近の実行IDを返す
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runID
}

// Stats は直近のプール統計を返す
func (e *Engine) Stats() *worker.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil
	}
	stats := e.pool.Stats()
	return &stats
}

// WorkerStates は直近のプールのワーカー状態を返す
func (e *Engine) WorkerStates() []worker.WorkerInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil
	}
	return e.pool.WorkerStates()
}

// Metrics は直近のプールのメトリクスを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil
	}
	snapshot := e.pool.Metrics().Snapshot()
	return &snapshot
}

// ChaosStats は直近の実行の障害注入統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// Produced は直近の実行で生成済みのアイテム数を返す
func (e *Engine) Produced() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.producer == nil {
		return 0
	}
	return e.producer.Produced()
}
