package worker

import (
	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
	"fixed-pool/internal/metrics"
)

// Option はプールの追加設定
type Option[T any] func(*Pool[T])

// WithLogger はプールが使うロガーを設定する
func WithLogger[T any](l *logger.Logger) Option[T] {
	return func(p *Pool[T]) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEventBus はライフサイクルイベントの発行先を設定する
func WithEventBus[T any](pub events.Publisher) Option[T] {
	return func(p *Pool[T]) {
		p.bus = pub
	}
}

// WithMetrics は常時収集メトリクスの格納先を差し替える
func WithMetrics[T any](m *metrics.Metrics) Option[T] {
	return func(p *Pool[T]) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithCollector は Prometheus コレクタを設定する
func WithCollector[T any](c *metrics.Collector) Option[T] {
	return func(p *Pool[T]) {
		p.collector = c
	}
}

// WithPanicHandler はプロセッサ panic 時のコールバックを設定する
func WithPanicHandler[T any](fn func(*PanicError)) Option[T] {
	return func(p *Pool[T]) {
		p.onPanic = fn
	}
}
