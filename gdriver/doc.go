// Package gdriver runs a storage synchronizer on behalf of its owning process.
//
// A [*Driver] owns one synchronizer and one storage image,
// and serves every request on a single kernel goroutine,
// so callers on any goroutine observe the requests in a total order.
// The driver is also where persistence happens:
// each applied block is saved to an optional [gstore.StateStore]
// before the next block is fed,
// and counters are saved to an optional [gstore.ProgressStore]
// after every request that changes them.
package gdriver
