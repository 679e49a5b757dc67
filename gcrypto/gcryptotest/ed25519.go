// Package gcryptotest contains deterministic keys for tests.
package gcryptotest

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/gordian-engine/glight/gcrypto"
)

// DeterministicEd25519Signers returns n ed25519 signers
// whose keys are the same on every call and every run.
//
// Generated private keys are cached,
// and every returned signer owns a fresh copy of its key bytes.
func DeterministicEd25519Signers(n int) []gcrypto.Ed25519Signer {
	muEd.Lock()
	for i := len(generatedEd25519); i < n; i++ {
		seed := fmt.Sprintf("%032d", i) // Seed must be 32 bytes long.
		generatedEd25519 = append(generatedEd25519, ed25519.NewKeyFromSeed([]byte(seed)))
	}
	privs := generatedEd25519[:n]
	muEd.Unlock()

	res := make([]gcrypto.Ed25519Signer, n)
	for i, priv := range privs {
		res[i] = gcrypto.NewEd25519Signer(bytes.Clone([]byte(priv)))
	}
	return res
}

var (
	muEd             sync.Mutex
	generatedEd25519 []ed25519.PrivateKey
)
