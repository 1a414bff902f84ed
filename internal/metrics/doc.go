// Package metrics provides work-item processing metrics for worker pools.
//
// Two layers are offered, and a pool may use either or both:
//
//   - Metrics: always-on, allocation-light counters (dispatched, processed,
//     failed), average and P99 processing latency, dispatch wait time and
//     throughput.
//   - Collector: optional Prometheus metrics registered on a caller-supplied
//     prometheus.Registerer, for scraping through promhttp.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	// ... process an item ...
//	m.RecordProcessed(time.Since(start))
//
//	snap := m.Snapshot()
//	fmt.Printf("Processed: %d, P99: %v\n", snap.Processed, snap.P99Latency)
//
// # Prometheus
//
//	reg := prometheus.NewRegistry()
//	c, err := metrics.NewCollector(reg, "fixedpool_demo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.ObserveDispatch(wait)
//
// A nil *Collector is valid and records nothing.
//
// # Thread Safety
//
// All operations are safe for concurrent access.
package metrics
