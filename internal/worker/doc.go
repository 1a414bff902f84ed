// Package worker provides a fixed-size goroutine pool that hands each work
// item directly to an idle worker.
//
// The Pool owns Size workers. Each worker is a dedicated goroutine with a
// single-slot mailbox: it holds at most one item at a time and runs the
// pool's Processor on it. There is no backlog: Dispatch finds an idle worker
// now, or waits until one becomes idle.
//
// # Basic Usage
//
//	pool := worker.NewPool(4, func(item Job) {
//	    // process item
//	})
//	pool.Prepare()
//
//	for _, job := range jobs {
//	    pool.Dispatch(job)
//	}
//
//	pool.Join()
//
// # Lifecycle
//
// A pool is inert after construction. Prepare starts the workers and must be
// called exactly once. Dispatch and TryDispatch are valid only between
// Prepare and Join. Join must be called once, after the last Dispatch has
// returned; it stops every worker in index order and waits for its goroutine
// to exit. An item that a worker accepted before Join is still processed.
//
// Violating these rules is a programming error and panics with an error
// wrapping ErrNotPrepared, ErrAlreadyPrepared, ErrAlreadyJoined or ErrJoined.
//
// # Worker States
//
// Workers move Ready -> Running when a dispatcher claims them, Running ->
// Ready when the Processor returns, and any -> Stopped on Join. Stopped is
// terminal. A worker's item and state are only touched while its mutex is
// held; the Processor runs with that mutex held, so dispatchers skip busy
// workers without blocking on them.
//
// # Blocking, not spinning
//
// Idle workers park on a condition variable until claimed. A dispatcher that
// finds every worker busy parks on the pool until some worker returns to
// Ready. Neither side polls.
//
// # Ordering
//
// Items are not processed in dispatch order. The worker chosen for an item is
// the lowest-index idle worker at the moment of the winning scan, and
// concurrent Dispatch calls are not served fairly.
//
// # Processor panics
//
// A panicking Processor terminates only its own worker, which becomes
// Stopped. The panic is logged, counted, published as an event and passed to
// the handler set with WithPanicHandler. If every worker has failed,
// Dispatch panics with ErrNoLiveWorkers instead of waiting forever.
package worker
