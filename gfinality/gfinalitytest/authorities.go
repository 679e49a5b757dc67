// Package gfinalitytest contains helpers for producing
// finality proofs and bridge genesis data in tests.
package gfinalitytest

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gcrypto"
	"github.com/gordian-engine/glight/gcrypto/gcryptotest"
	"github.com/gordian-engine/glight/gfinality"
	"github.com/gordian-engine/glight/gtrie"
)

// Authorities is an authority set together with the signers behind it.
type Authorities struct {
	Set     gchain.AuthoritySet
	Signers []gcrypto.Ed25519Signer
}

// NewAuthorities returns an authority set with ID setID
// whose members are deterministic signers first through first+n-1,
// each with weight 1.
func NewAuthorities(setID uint64, first, n int) Authorities {
	all := gcryptotest.DeterministicEd25519Signers(first + n)
	signers := all[first:]

	list := make([]gchain.Authority, n)
	for i, s := range signers {
		list[i] = gchain.Authority{PubKey: s.PubKey().PubKeyBytes(), Weight: 1}
	}
	return Authorities{
		Set:     gchain.AuthoritySet{List: list, ID: setID},
		Signers: signers,
	}
}

// StoragePairs returns the storage entries that record a's authority set.
func (a Authorities) StoragePairs() []gchain.KeyValue {
	list, err := a.Set.EncodeList()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode authority list: %w", err))
	}
	return gfinality.AuthoritySetItems(a.Set.ID, list)
}

// Justify returns an encoded justification for header
// signed by every authority.
func (a Authorities) Justify(header gchain.Header) []byte {
	idxs := make([]int, len(a.Signers))
	for i := range idxs {
		idxs[i] = i
	}
	return a.JustifyWith(header, 0, idxs...)
}

// JustifyWith returns an encoded justification for header in the given round
// signed only by the authorities at signerIdxs.
func (a Authorities) JustifyWith(header gchain.Header, round uint64, signerIdxs ...int) []byte {
	target := header.Hash()
	msg := gfinality.SigningMessage(target, header.Number, round, a.Set.ID)

	signers := bitset.New(uint(len(a.Signers)))
	for _, idx := range signerIdxs {
		signers.Set(uint(idx))
	}

	var sigs [][]byte
	for i, ok := signers.NextSet(0); ok; i, ok = signers.NextSet(i + 1) {
		sig, err := a.Signers[i].Sign(context.Background(), msg)
		if err != nil {
			panic(fmt.Errorf("BUG: failed to sign: %w", err))
		}
		sigs = append(sigs, sig)
	}

	enc, err := gfinality.Justification{
		Round:        round,
		TargetHash:   target,
		TargetNumber: header.Number,
		Signers:      signers,
		Signatures:   sigs,
	}.Encode()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode justification: %w", err))
	}
	return enc
}

// Genesis returns a storage image holding a's authority set plus extra pairs,
// and bridge genesis info for a header at number 0 committing to that image.
func (a Authorities) Genesis(extra ...gchain.KeyValue) (gchain.GenesisBlockInfo, *gtrie.Storage) {
	s := gtrie.New()
	pairs := append(a.StoragePairs(), extra...)
	root, tx := s.CalcRootIfChanges(pairs, nil)
	s.ApplyChanges(root, tx)

	proof, err := s.Prove([][]byte{gchain.GrandpaAuthoritiesKey, gchain.GrandpaCurrentSetIDKey})
	if err != nil {
		panic(fmt.Errorf("BUG: failed to prove genesis authorities: %w", err))
	}

	hdr := gchain.Header{Number: 0, StateRoot: root}
	return gchain.GenesisBlockInfo{
		BlockHeader:  hdr,
		AuthoritySet: a.Set,
		Proof:        proof,
	}, s
}

// Change returns an authority-set change to a,
// proven against s, which must already contain a's storage pairs.
func (a Authorities) Change(s *gtrie.Storage) *gchain.AuthoritySetChange {
	proof, err := s.Prove([][]byte{gchain.GrandpaAuthoritiesKey, gchain.GrandpaCurrentSetIDKey})
	if err != nil {
		panic(fmt.Errorf("BUG: failed to prove authority set change: %w", err))
	}
	return &gchain.AuthoritySetChange{AuthoritySet: a.Set, Proof: proof}
}
