// Package collector records the values a worker pool's processor produced.
//
// Collector is the shared result list guarded by an external lock: workers
// call Record concurrently, and once the pool has been joined the caller
// checks completeness with Missing and Duplicates. Arrival order is exposed
// through Values and InOrder for reporting only; the pool makes no ordering
// promise.
package collector
