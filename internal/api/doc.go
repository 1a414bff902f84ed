// Package api provides the HTTP and WebSocket observation server.
//
// The server starts scenario runs in the background and exposes the state of
// the current (or most recent) pool:
//
//	GET  /api/status    run and pool summary
//	GET  /api/workers   per-worker state in index order
//	GET  /api/metrics   processing metrics of the current pool
//	POST /api/run       start a preset run ({"preset":"basic","items":500})
//	POST /api/run/stop  cancel the producer of the current run
//	GET  /api/result    result of the most recent run
//	GET  /api/presets   available presets
//	GET  /metrics       Prometheus exposition
//	GET  /health        liveness
//	     /ws            WebSocket stream of bus events and periodic status
package api
