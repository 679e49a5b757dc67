// Package gstore contains the persistence interfaces
// used by the process that owns a storage synchronizer.
//
// The synchronizers themselves never persist anything;
// the owning process saves each applied block's changes to a [StateStore]
// and the synchronizer's counters to a [ProgressStore],
// so that it can resume after a restart.
package gstore

// Compile-time assertion that the stores can be embedded in a single interface.
var _ interface {
	StateStore
	ProgressStore
}
