package gchain

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size in bytes of a [Hash].
const HashSize = 32

// Hash is a blake2b-256 digest, used for block hashes and state roots.
type Hash [HashSize]byte

// HashFromBytes copies b into a new Hash.
// It returns an error if b is not exactly [HashSize] bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("hash must be %d bytes (got %d)", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Blake2b256 returns the blake2b-256 digest of the concatenation of parts.
func Blake2b256(parts ...[]byte) Hash {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Errorf("BUG: failed to create blake2b hasher: %w", err))
	}
	for _, p := range parts {
		_, _ = hasher.Write(p)
	}

	var h Hash
	_ = hasher.Sum(h[:0])
	return h
}

// Bytes returns a copy of h as a byte slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) LogValue() slog.Value {
	return slog.StringValue(h.String())
}
