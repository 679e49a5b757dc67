// Package gfinality tracks finalized headers of bridged chains.
//
// A bridge starts from a trusted [gchain.GenesisBlockInfo].
// Each later submission must carry a [Justification]
// signed by a Byzantine majority of the bridge's current authority set,
// and an ancestry connecting the submitted header to the last finalized one.
package gfinality

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gcrypto"
	"github.com/gordian-engine/glight/gtrie"
)

// Validator verifies finality and storage proofs for any number of bridges.
//
// Validator is not safe for concurrent use.
type Validator struct {
	bridges map[uint64]*bridge
	nextID  uint64
}

type bridge struct {
	lastFinalized gchain.Header

	set         gchain.AuthoritySet
	keys        []gcrypto.Ed25519PubKey
	totalWeight uint64
}

func NewValidator() *Validator {
	return &Validator{bridges: map[uint64]*bridge{}}
}

// AddBridge starts tracking a new chain from genesis
// and returns the ID to use in later submissions.
//
// The genesis proof must show the authority list and set ID
// in the state committed to by the genesis header.
func (v *Validator) AddBridge(genesis gchain.GenesisBlockInfo) (uint64, error) {
	keys, total, err := checkAuthoritySet(genesis.AuthoritySet)
	if err != nil {
		return 0, fmt.Errorf("invalid genesis authority set: %w", err)
	}

	if err := verifyAuthoritySetProof(genesis.BlockHeader.StateRoot, genesis.AuthoritySet, genesis.Proof); err != nil {
		return 0, fmt.Errorf("invalid genesis authority set proof: %w", err)
	}

	id := v.nextID
	v.nextID++
	v.bridges[id] = &bridge{
		lastFinalized: genesis.BlockHeader,
		set:           genesis.AuthoritySet,
		keys:          keys,
		totalWeight:   total,
	}
	return id, nil
}

// SubmitFinalizedHeaders finalizes header on the given bridge.
//
// The ancestry lists the headers between the last finalized header and header,
// highest first, excluding both ends.
// If change is not nil, the new authority set takes effect
// for submissions after this one.
//
// On any error the bridge is unchanged.
func (v *Validator) SubmitFinalizedHeaders(
	bridgeID uint64,
	header gchain.Header,
	ancestry []gchain.Header,
	finalityProof []byte,
	change *gchain.AuthoritySetChange,
) error {
	b, ok := v.bridges[bridgeID]
	if !ok {
		return UnknownBridgeError{ID: bridgeID}
	}

	if header.Number <= b.lastFinalized.Number {
		return StaleHeaderError{Finalized: b.lastFinalized.Number, Got: header.Number}
	}

	if err := verifyAncestry(b.lastFinalized, header, ancestry); err != nil {
		return err
	}

	j, err := DecodeJustification(finalityProof)
	if err != nil {
		return err
	}
	if err := b.verifyJustification(header, j); err != nil {
		return err
	}

	var (
		nextKeys  []gcrypto.Ed25519PubKey
		nextTotal uint64
	)
	if change != nil {
		if change.AuthoritySet.ID != b.set.ID+1 {
			return AuthoritySetChangeError{
				Err: fmt.Errorf("set ID must be %d (got %d)", b.set.ID+1, change.AuthoritySet.ID),
			}
		}
		nextKeys, nextTotal, err = checkAuthoritySet(change.AuthoritySet)
		if err != nil {
			return AuthoritySetChangeError{Err: err}
		}
		if err := verifyAuthoritySetProof(header.StateRoot, change.AuthoritySet, change.Proof); err != nil {
			return AuthoritySetChangeError{Err: err}
		}
	}

	b.lastFinalized = header
	if change != nil {
		b.set = change.AuthoritySet
		b.keys = nextKeys
		b.totalWeight = nextTotal
	}
	return nil
}

// ValidateStorageProof checks that every item is included
// in the state committed to by root.
func (v *Validator) ValidateStorageProof(root gchain.Hash, proof gchain.StorageProof, items []gchain.KeyValue) error {
	return gtrie.VerifyProof(root, proof, items)
}

// LastFinalized returns the most recently finalized header of the bridge.
func (v *Validator) LastFinalized(bridgeID uint64) (gchain.Header, error) {
	b, ok := v.bridges[bridgeID]
	if !ok {
		return gchain.Header{}, UnknownBridgeError{ID: bridgeID}
	}
	return b.lastFinalized, nil
}

// AuthoritySet returns the authority set currently in effect for the bridge.
func (v *Validator) AuthoritySet(bridgeID uint64) (gchain.AuthoritySet, error) {
	b, ok := v.bridges[bridgeID]
	if !ok {
		return gchain.AuthoritySet{}, UnknownBridgeError{ID: bridgeID}
	}
	return b.set, nil
}

func verifyAncestry(finalized, header gchain.Header, ancestry []gchain.Header) error {
	child := header
	for _, a := range ancestry {
		if got := a.Hash(); child.ParentHash != got {
			return AncestryMismatchError{Number: child.Number, Want: child.ParentHash, Got: got}
		}
		child = a
	}
	if got := finalized.Hash(); child.ParentHash != got {
		return AncestryMismatchError{Number: child.Number, Want: child.ParentHash, Got: got}
	}
	return nil
}

func (b *bridge) verifyJustification(header gchain.Header, j Justification) error {
	if want := header.Hash(); j.TargetHash != want || j.TargetNumber != header.Number {
		return JustificationTargetError{
			WantHash: want, GotHash: j.TargetHash,
			WantNumber: header.Number, GotNumber: j.TargetNumber,
		}
	}

	if n := j.Signers.Count(); n != uint(len(j.Signatures)) {
		return fmt.Errorf("justification has %d signers but %d signatures", n, len(j.Signatures))
	}

	msg := SigningMessage(j.TargetHash, j.TargetNumber, j.Round, b.set.ID)

	var weight uint64
	sigIdx := 0
	for i, ok := j.Signers.NextSet(0); ok; i, ok = j.Signers.NextSet(i + 1) {
		if i >= uint(len(b.keys)) {
			return fmt.Errorf("justification signer index %d out of range for %d authorities", i, len(b.keys))
		}
		if !b.keys[i].Verify(msg, j.Signatures[sigIdx]) {
			return InvalidSignatureError{AuthorityIdx: int(i), Err: gcrypto.ErrInvalidSignature}
		}
		weight += b.set.List[i].Weight
		sigIdx++
	}

	if need := ByzantineMajority(b.totalWeight); weight < need {
		return InsufficientWeightError{Have: weight, Need: need}
	}
	return nil
}

func checkAuthoritySet(set gchain.AuthoritySet) ([]gcrypto.Ed25519PubKey, uint64, error) {
	if len(set.List) == 0 {
		return nil, 0, errors.New("authority set is empty")
	}

	keys := make([]gcrypto.Ed25519PubKey, len(set.List))
	var total uint64
	for i, a := range set.List {
		k, err := gcrypto.NewEd25519PubKey(a.PubKey)
		if err != nil {
			return nil, 0, fmt.Errorf("authority %d: %w", i, err)
		}
		keys[i] = k

		if total+a.Weight < total {
			return nil, 0, errors.New("authority weights overflow")
		}
		total += a.Weight
	}
	if total == 0 {
		return nil, 0, errors.New("authority set has zero total weight")
	}
	return keys, total, nil
}

func verifyAuthoritySetProof(root gchain.Hash, set gchain.AuthoritySet, proof gchain.StorageProof) error {
	list, err := set.EncodeList()
	if err != nil {
		return fmt.Errorf("failed to encode authority list: %w", err)
	}
	return gtrie.VerifyProof(root, proof, AuthoritySetItems(set.ID, list))
}

// AuthoritySetItems returns the storage entries that record an authority set:
// the encoded list under [gchain.GrandpaAuthoritiesKey]
// and the set ID under [gchain.GrandpaCurrentSetIDKey].
func AuthoritySetItems(setID uint64, encodedList []byte) []gchain.KeyValue {
	return []gchain.KeyValue{
		{Key: gchain.GrandpaAuthoritiesKey, Value: encodedList},
		{Key: gchain.GrandpaCurrentSetIDKey, Value: gchain.EncodeSetID(setID)},
	}
}
