package gcrypto

import (
	"crypto/ed25519"

	"golang.org/x/crypto/blake2b"
)

// SignerFromInsecurePassphrase derives an ed25519 signer
// from the blake2b hash of prefix and passphrase.
//
// Passphrase-derived keys are only suitable for local networks and tests.
func SignerFromInsecurePassphrase(prefix, insecurePassphrase string) (Ed25519Signer, error) {
	bh, err := blake2b.New(ed25519.SeedSize, nil)
	if err != nil {
		return Ed25519Signer{}, err
	}
	bh.Write([]byte(prefix + insecurePassphrase))
	seed := bh.Sum(nil)

	return NewEd25519Signer(ed25519.NewKeyFromSeed(seed)), nil
}
