package gchain

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// ParaID identifies a parachain registered on the relaychain.
type ParaID uint32

// Authority is a single member of an [AuthoritySet].
type Authority struct {
	// Ed25519 public key of the authority.
	PubKey []byte

	// Voting weight. Justifications must gather
	// a Byzantine majority of the total weight of the set.
	Weight uint64
}

// AuthoritySet is the group of authorities entitled to finalize headers,
// identified by a monotonically increasing set ID.
type AuthoritySet struct {
	List []Authority
	ID   uint64
}

// TotalWeight returns the sum of the weights of all authorities in the set.
func (s AuthoritySet) TotalWeight() uint64 {
	var total uint64
	for _, a := range s.List {
		total += a.Weight
	}
	return total
}

// EncodeList returns the SCALE encoding of the authority list,
// as stored under [GrandpaAuthoritiesKey].
func (s AuthoritySet) EncodeList() ([]byte, error) {
	return scale.Marshal(s.List)
}

// DecodeAuthorityList decodes a value produced by [AuthoritySet.EncodeList].
func DecodeAuthorityList(b []byte) ([]Authority, error) {
	var list []Authority
	if err := scale.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("failed to decode authority list: %w", err)
	}
	return list, nil
}

// EncodeSetID returns the SCALE encoding of id,
// as stored under [GrandpaCurrentSetIDKey].
func EncodeSetID(id uint64) []byte {
	b, err := scale.Marshal(id)
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode set ID: %w", err))
	}
	return b
}

// AuthoritySetChange announces a rotation of the authority set
// at the header it accompanies.
type AuthoritySetChange struct {
	AuthoritySet AuthoritySet

	// Proof of the new set's list and ID
	// against the state root of the accompanying header.
	Proof StorageProof
}

// StorageProof is an ordered list of opaque proof nodes.
type StorageProof [][]byte

// KeyValue is a single storage entry or change.
// A nil Value in a change set means the key is deleted.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// ChildStorageChanges is the set of changes to one child trie.
type ChildStorageChanges struct {
	StorageKey []byte
	Changes    []KeyValue
}

// StorageChanges is the full set of changes declared for one block.
type StorageChanges struct {
	MainStorageChanges  []KeyValue
	ChildStorageChanges []ChildStorageChanges
}

// BlockHeaderWithChanges is a block's header together with the storage changes
// that the block applies.
type BlockHeaderWithChanges struct {
	BlockHeader    Header
	StorageChanges StorageChanges
}

// GenesisBlockInfo is the trusted starting point of a bridge:
// a header, the authority set in effect at it,
// and a proof of that set against the header's state root.
type GenesisBlockInfo struct {
	BlockHeader  Header
	AuthoritySet AuthoritySet
	Proof        StorageProof
}

// Encode returns the SCALE encoding of g.
func (g GenesisBlockInfo) Encode() ([]byte, error) {
	return scale.Marshal(scaleGenesisBlockInfo{
		BlockHeader:  g.BlockHeader.toSCALE(),
		AuthoritySet: g.AuthoritySet,
		Proof:        g.Proof,
	})
}

// DecodeGenesisBlockInfo decodes a value produced by [GenesisBlockInfo.Encode].
func DecodeGenesisBlockInfo(b []byte) (GenesisBlockInfo, error) {
	var sg scaleGenesisBlockInfo
	if err := scale.Unmarshal(b, &sg); err != nil {
		return GenesisBlockInfo{}, fmt.Errorf("failed to decode genesis block info: %w", err)
	}
	hdr, err := sg.BlockHeader.toHeader()
	if err != nil {
		return GenesisBlockInfo{}, err
	}
	return GenesisBlockInfo{
		BlockHeader:  hdr,
		AuthoritySet: sg.AuthoritySet,
		Proof:        sg.Proof,
	}, nil
}

type scaleGenesisBlockInfo struct {
	BlockHeader  scaleHeader
	AuthoritySet AuthoritySet
	Proof        StorageProof
}
