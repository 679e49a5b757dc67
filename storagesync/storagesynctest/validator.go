// Package storagesynctest contains fixtures for testing code built on [storagesync].
package storagesynctest

import (
	"github.com/gordian-engine/glight/gchain"
)

// MockValidator accepts or rejects deterministically
// and records what it was asked to validate.
//
// It is not safe for concurrent use.
type MockValidator struct {
	SubmitErr error
	ProofErr  error

	Submits []SubmitCall
	Proofs  []ProofCall
}

type SubmitCall struct {
	BridgeID      uint64
	Header        gchain.Header
	Ancestry      []gchain.Header
	FinalityProof []byte
	Change        *gchain.AuthoritySetChange
}

type ProofCall struct {
	Root  gchain.Hash
	Proof gchain.StorageProof
	Items []gchain.KeyValue
}

func (v *MockValidator) SubmitFinalizedHeaders(
	bridgeID uint64,
	header gchain.Header,
	ancestry []gchain.Header,
	finalityProof []byte,
	change *gchain.AuthoritySetChange,
) error {
	v.Submits = append(v.Submits, SubmitCall{
		BridgeID:      bridgeID,
		Header:        header,
		Ancestry:      ancestry,
		FinalityProof: finalityProof,
		Change:        change,
	})
	return v.SubmitErr
}

func (v *MockValidator) ValidateStorageProof(root gchain.Hash, proof gchain.StorageProof, items []gchain.KeyValue) error {
	v.Proofs = append(v.Proofs, ProofCall{Root: root, Proof: proof, Items: items})
	return v.ProofErr
}

// Justification is an arbitrary non-nil finality proof,
// accepted by a MockValidator with no SubmitErr.
var Justification = []byte("justification")
