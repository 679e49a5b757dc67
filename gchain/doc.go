// Package gchain contains the data model of the tracked chains:
// headers, finality payloads, storage proofs and storage changes,
// along with their SCALE encodings and the storage-key derivations
// used to locate well-known values in chain state.
//
// Values in this package are plain data.
// Validation of headers and proofs happens in other packages.
package gchain
