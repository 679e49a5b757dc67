package gchain

import (
	"fmt"
	"math"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// BlockNumber is the height of a block in its chain.
type BlockNumber uint32

// MaxBlockNumber is the highest representable block number.
// Nothing can follow it, so the synchronizer refuses to advance onto it.
const MaxBlockNumber BlockNumber = math.MaxUint32

// Header is a block header of either the relaychain or a parachain.
//
// Only ParentHash, Number and StateRoot are interpreted by the synchronizer;
// the remaining fields are carried so that the header hash
// matches the hash computed by the remote chain.
type Header struct {
	ParentHash     Hash
	Number         BlockNumber
	StateRoot      Hash
	ExtrinsicsRoot Hash

	// Raw digest items, in order.
	Digest [][]byte
}

// scaleHeader is the SCALE layout of a Header.
// The uint field is encoded as a compact integer.
type scaleHeader struct {
	ParentHash     Hash
	Number         uint
	StateRoot      Hash
	ExtrinsicsRoot Hash
	Digest         [][]byte
}

func (h Header) toSCALE() scaleHeader {
	return scaleHeader{
		ParentHash:     h.ParentHash,
		Number:         uint(h.Number),
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Digest:         h.Digest,
	}
}

func (sh scaleHeader) toHeader() (Header, error) {
	if sh.Number > uint(^BlockNumber(0)) {
		return Header{}, fmt.Errorf("header number %d overflows block number", sh.Number)
	}
	h := Header{
		ParentHash:     sh.ParentHash,
		Number:         BlockNumber(sh.Number),
		StateRoot:      sh.StateRoot,
		ExtrinsicsRoot: sh.ExtrinsicsRoot,
	}
	if len(sh.Digest) > 0 {
		h.Digest = sh.Digest
	}
	return h, nil
}

// Encode returns the SCALE encoding of h.
func (h Header) Encode() ([]byte, error) {
	return scale.Marshal(h.toSCALE())
}

// Hash returns the blake2b-256 hash of the SCALE encoding of h.
func (h Header) Hash() Hash {
	enc, err := h.Encode()
	if err != nil {
		// The header layout contains only fixed arrays, integers and byte slices,
		// so encoding cannot fail.
		panic(fmt.Errorf("BUG: failed to encode header %d: %w", h.Number, err))
	}
	return Blake2b256(enc)
}

// EncodeHeadData returns the value stored for a parachain head in relaychain state:
// the header's SCALE encoding, wrapped once more as a SCALE byte vector.
//
// Storage proofs for parachain heads are checked against exactly this value,
// so the double encoding must be preserved.
func (h Header) EncodeHeadData() ([]byte, error) {
	enc, err := h.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	return scale.Marshal(enc)
}

// DecodeHeader decodes a SCALE-encoded header.
func DecodeHeader(b []byte) (Header, error) {
	var sh scaleHeader
	if err := scale.Unmarshal(b, &sh); err != nil {
		return Header{}, fmt.Errorf("failed to decode header: %w", err)
	}
	return sh.toHeader()
}

// DecodeHeadData decodes a parachain head value produced by [Header.EncodeHeadData].
func DecodeHeadData(b []byte) (Header, error) {
	var inner []byte
	if err := scale.Unmarshal(b, &inner); err != nil {
		return Header{}, fmt.Errorf("failed to decode head data: %w", err)
	}
	return DecodeHeader(inner)
}

// HeaderToSync is a relaychain header with its optional finality justification.
// Only the last header of a batch is required to have a justification.
type HeaderToSync struct {
	Header Header

	// Nil when the header has no justification.
	Justification []byte
}

type scaleHeaderToSync struct {
	Header        scaleHeader
	Justification *[]byte
}

func (h HeaderToSync) toSCALE() scaleHeaderToSync {
	out := scaleHeaderToSync{Header: h.Header.toSCALE()}
	if h.Justification != nil {
		j := h.Justification
		out.Justification = &j
	}
	return out
}

func (sh scaleHeaderToSync) toHeaderToSync() (HeaderToSync, error) {
	hdr, err := sh.Header.toHeader()
	if err != nil {
		return HeaderToSync{}, err
	}
	out := HeaderToSync{Header: hdr}
	if sh.Justification != nil {
		out.Justification = *sh.Justification
		if out.Justification == nil {
			// Present but empty must stay distinguishable from absent.
			out.Justification = []byte{}
		}
	}
	return out, nil
}
