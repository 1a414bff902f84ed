// Package producer provides the load generator that feeds a worker pool.
//
// A Producer generates a fixed number of Items from a single goroutine and
// hands each one to a Dispatcher, which is usually a *worker.Pool[Item].
// Because Dispatch blocks until a worker has claimed the item, the producer
// runs at the pace of the pool unless an explicit rate limit is lower.
//
// # Basic Usage
//
//	pool := worker.NewPool(2, func(it producer.Item) { ... })
//	pool.Prepare()
//
//	config := producer.DefaultConfig()
//	config.Items = 1000
//	config.Rate = 500 // items/sec, 0 = unlimited
//	p := producer.New(pool, config)
//	if err := p.Run(ctx); err != nil {
//	    // ctx was cancelled between items
//	}
//	pool.Join()
//
// # Configuration
//
// The Config struct allows tuning:
//   - Items: number of items to generate
//   - Rate, Burst: optional token-bucket throttle (golang.org/x/time/rate)
//   - MinDelay, MaxDelay: range of the simulated processing time carried by each Item
//   - Seed: random seed (0 = current time)
package producer
