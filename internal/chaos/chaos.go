package chaos

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
)

// FaultType は注入する障害の種類を表す
type FaultType int

const (
	FaultPanic FaultType = iota
	FaultDelay
)

func (f FaultType) String() string {
	switch f {
	case FaultPanic:
		return "panic"
	case FaultDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Config はChaosMonkeyの設定
type Config struct {
	Name          string        // ログ・イベントに使う名前（通常はプール名）
	PanicRate     float64       // 1回の処理でpanicを注入する確率（0.0〜1.0）
	MaxPanics     int           // panic注入の上限（0でpanicなし）
	DelayRate     float64       // 1回の処理で遅延を注入する確率（0.0〜1.0）
	DelayDuration time.Duration // Delay注入時の遅延時間
	Seed          int64         // 乱数シード（0で現在時刻）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:          "chaos",
		PanicRate:     0.01,
		MaxPanics:     1,
		DelayRate:     0.05,
		DelayDuration: 10 * time.Millisecond,
	}
}

// Enabled は何らかの障害が注入されうるかを返す
func (c Config) Enabled() bool {
	return (c.PanicRate > 0 && c.MaxPanics > 0) || (c.DelayRate > 0 && c.DelayDuration > 0)
}

// InjectedPanic は注入されたpanicの値
type InjectedPanic struct {
	N int // 何回目の注入か（1始まり）
}

func (p InjectedPanic) Error() string {
	return fmt.Sprintf("chaos: injected panic #%d", p.N)
}

// Stats は障害注入の統計情報
type Stats struct {
	TotalFaults uint64            `json:"total_faults"`
	ByType      map[string]uint64 `json:"faults_by_type"`
}

// Monkey はプロセッサ呼び出しに障害を注入する
type Monkey struct {
	config   Config
	eventBus events.Publisher
	log      *logger.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	faultCount  uint64
	faultByType map[FaultType]uint64
	panics      int
}

// New は新しいChaosMonkeyを作成する
func New(config Config) *Monkey {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if config.Name == "" {
		config.Name = "chaos"
	}

	return &Monkey{
		config:      config,
		log:         logger.Default,
		rng:         rand.New(rand.NewSource(seed)),
		faultByType: make(map[FaultType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus events.Publisher) {
	m.eventBus = bus
}

// SetLogger はロガーを設定する
func (m *Monkey) SetLogger(l *logger.Logger) {
	m.log = l
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Wrap は proc の前に障害注入を挟んだプロセッサを返す。
// panic を注入した呼び出しでは proc は呼ばれない
func Wrap[T any](m *Monkey, proc func(T)) func(T) {
	return func(item T) {
		m.Inject()
		proc(item)
	}
}

// Inject は設定された確率で障害を1つ注入する。
// panic はプロセッサを実行しているワーカーのゴルーチン上で発生する
func (m *Monkey) Inject() {
	switch fault, n := m.roll(); fault {
	case FaultPanic:
		m.log.Warn(m.config.Name, "ChaosMonkey: injecting panic #%d", n)
		m.publishEvent(events.NewFaultInjectedEvent(m.config.Name, FaultPanic.String(), 0))
		panic(InjectedPanic{N: n})
	case FaultDelay:
		m.log.Debug(m.config.Name, "ChaosMonkey: injecting %v delay", m.config.DelayDuration)
		m.publishEvent(events.NewFaultInjectedEvent(m.config.Name, FaultDelay.String(), m.config.DelayDuration))
		time.Sleep(m.config.DelayDuration)
	}
}

// roll は注入する障害を決めて統計に記録する。何も注入しない場合は -1 を返す
func (m *Monkey) roll() (FaultType, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panics < m.config.MaxPanics && m.rng.Float64() < m.config.PanicRate {
		m.panics++
		m.record(FaultPanic)
		return FaultPanic, m.panics
	}
	if m.config.DelayDuration > 0 && m.rng.Float64() < m.config.DelayRate {
		m.record(FaultDelay)
		return FaultDelay, 0
	}
	return -1, 0
}

func (m *Monkey) record(f FaultType) {
	m.faultCount++
	m.faultByType[f]++
}

// FaultCount は注入回数を返す
func (m *Monkey) FaultCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faultCount
}

// Panics は注入したpanicの回数を返す
func (m *Monkey) Panics() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics
}

// Stats は注入統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[string]uint64)
	for t, count := range m.faultByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalFaults: m.faultCount,
		ByType:      byType,
	}
}
