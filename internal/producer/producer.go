package producer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"fixed-pool/internal/logger"

	"golang.org/x/time/rate"
)

// ErrAlreadyRunning は実行中の Producer を再度実行しようとした場合のエラー
var ErrAlreadyRunning = errors.New("producer is already running")

// Item はプールに渡すワークアイテム
type Item struct {
	Seq    uint64        // 生成順の通し番号
	Value  int           // 処理対象の値
	Weight float64       // 値に付随する補助データ
	Delay  time.Duration // 処理側で消費する疑似処理時間
}

// Dispatcher はアイテムを受け取る側のインターフェース。
// *worker.Pool[Item] がこれを満たす
type Dispatcher interface {
	Dispatch(item Item)
}

// Config はProducerの設定
type Config struct {
	Items    int           // 生成するアイテム数
	Rate     float64       // 秒間アイテム数（0で無制限）
	Burst    int           // レート制限のバースト（0で1）
	MinDelay time.Duration // 疑似処理時間の下限
	MaxDelay time.Duration // 疑似処理時間の上限
	Seed     int64         // 乱数シード（0で現在時刻）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Items:    100,
		Rate:     0,
		Burst:    1,
		MinDelay: 1 * time.Millisecond,
		MaxDelay: 20 * time.Millisecond,
	}
}

// Producer は単一ゴルーチンでアイテムを生成し Dispatcher に渡す負荷生成器
type Producer struct {
	config     Config
	dispatcher Dispatcher
	limiter    *rate.Limiter
	rng        *rand.Rand
	log        *logger.Logger

	running  atomic.Bool
	produced atomic.Uint64
}

// New は新しいProducerを作成する
func New(d Dispatcher, config Config) *Producer {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Producer{
		config:     config,
		dispatcher: d,
		rng:        rand.New(rand.NewSource(seed)),
		log:        logger.Default,
	}

	if config.Rate > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(config.Rate), burst)
	}

	return p
}

// SetLogger はロガーを設定する
func (p *Producer) SetLogger(l *logger.Logger) {
	p.log = l
}

// Run は Items 個のアイテムを順に生成して渡す。
// ctx のキャンセルはアイテム間でのみ観測し、Dispatch 中のアイテムは中断しない
func (p *Producer) Run(ctx context.Context) error {
	if p.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.log.Info("producer", "Producer started (items: %d, rate: %s)", p.config.Items, p.rateString())

	for i := range p.config.Items {
		if err := ctx.Err(); err != nil {
			p.log.Warn("producer", "Producer cancelled after %d items", p.produced.Load())
			return fmt.Errorf("producer cancelled: %w", err)
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.log.Warn("producer", "Producer cancelled after %d items", p.produced.Load())
				return fmt.Errorf("producer cancelled: %w", waitError(ctx, err))
			}
		}

		p.dispatcher.Dispatch(p.next(i))
		p.produced.Add(1)
	}

	p.log.Info("producer", "Producer finished (produced: %d)", p.produced.Load())
	return nil
}

// waitError はレート制限待ちのエラーをコンテキストのエラーに揃える。
// Limiter はデッドラインを越える待ちを事前に拒否するが、そのエラーは
// context.DeadlineExceeded をラップしない
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}

// next は i 番目のアイテムを生成する
func (p *Producer) next(i int) Item {
	return Item{
		Seq:    uint64(i),
		Value:  i,
		Weight: math.Pow(float64(i), float64(i)),
		Delay:  p.randomDelay(),
	}
}

// randomDelay は [MinDelay, MaxDelay] の一様乱数を返す
func (p *Producer) randomDelay() time.Duration {
	lo, hi := p.config.MinDelay, p.config.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)+1))
}

func (p *Producer) rateString() string {
	if p.limiter == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%.1f/s", p.config.Rate)
}

// Produced は生成済みアイテム数を返す
func (p *Producer) Produced() uint64 {
	return p.produced.Load()
}

// IsRunning は実行中かどうかを返す
func (p *Producer) IsRunning() bool {
	return p.running.Load()
}
