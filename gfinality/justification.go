package gfinality

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/bits-and-blooms/bitset"
	"github.com/gordian-engine/glight/gchain"
)

// Justification is a finality proof for a single target header.
//
// Signers marks which authorities of the current set signed,
// by index into the set's list,
// and Signatures holds one signature per set bit in ascending index order.
type Justification struct {
	Round uint64

	TargetHash   gchain.Hash
	TargetNumber gchain.BlockNumber

	Signers    *bitset.BitSet
	Signatures [][]byte
}

type scaleJustification struct {
	Round        uint64
	TargetHash   gchain.Hash
	TargetNumber uint32
	SignerWords  []uint64
	Signatures   [][]byte
}

// Encode returns the SCALE encoding of j.
func (j Justification) Encode() ([]byte, error) {
	var words []uint64
	if j.Signers != nil {
		words = j.Signers.Bytes()
	}
	return scale.Marshal(scaleJustification{
		Round:        j.Round,
		TargetHash:   j.TargetHash,
		TargetNumber: uint32(j.TargetNumber),
		SignerWords:  words,
		Signatures:   j.Signatures,
	})
}

// DecodeJustification decodes a value produced by [Justification.Encode].
func DecodeJustification(b []byte) (Justification, error) {
	var sj scaleJustification
	if err := scale.Unmarshal(b, &sj); err != nil {
		return Justification{}, fmt.Errorf("failed to decode justification: %w", err)
	}
	return Justification{
		Round:        sj.Round,
		TargetHash:   sj.TargetHash,
		TargetNumber: gchain.BlockNumber(sj.TargetNumber),
		Signers:      bitset.From(sj.SignerWords),
		Signatures:   sj.Signatures,
	}, nil
}

// SigningMessage returns the bytes an authority signs
// to vote for the target in the given round and authority set.
func SigningMessage(target gchain.Hash, number gchain.BlockNumber, round, setID uint64) []byte {
	b, err := scale.Marshal(struct {
		TargetHash   gchain.Hash
		TargetNumber uint32
		Round        uint64
		SetID        uint64
	}{target, uint32(number), round, setID})
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode signing message: %w", err))
	}
	return b
}
