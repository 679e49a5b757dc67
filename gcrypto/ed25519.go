package gcrypto

import (
	"context"
	"crypto"
	"crypto/ed25519"
)

const ed25519TypeName = "ed25519"

type Ed25519PubKey ed25519.PublicKey

// NewEd25519PubKey returns b as an Ed25519PubKey,
// or an [InvalidPubKeyError] if b has the wrong length.
//
// The returned key retains a reference to b.
func NewEd25519PubKey(b []byte) (Ed25519PubKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, InvalidPubKeyError{
			TypeName: ed25519TypeName,
			Want:     ed25519.PublicKeySize,
			Got:      len(b),
		}
	}
	return Ed25519PubKey(b), nil
}

func (e Ed25519PubKey) PubKeyBytes() []byte {
	return []byte(e)
}

func (e Ed25519PubKey) Verify(msg, sig []byte) bool {
	if len(e) != ed25519.PublicKeySize {
		// ed25519.Verify panics on a malformed key.
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(e), msg, sig)
}

func (e Ed25519PubKey) Equal(other PubKey) bool {
	o, ok := other.(Ed25519PubKey)
	if !ok {
		return false
	}

	return ed25519.PublicKey(e).Equal(ed25519.PublicKey(o))
}

func (e Ed25519PubKey) TypeName() string {
	return ed25519TypeName
}

type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  Ed25519PubKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{
		priv: priv,
		pub:  Ed25519PubKey(priv.Public().(ed25519.PublicKey)),
	}
}

func (s Ed25519Signer) PubKey() PubKey {
	return s.pub
}

// Ed25519PubKey returns the concrete public key of s.
func (s Ed25519Signer) Ed25519PubKey() Ed25519PubKey {
	return s.pub
}

func (s Ed25519Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return s.priv.Sign(nil, input, crypto.Hash(0))
}
