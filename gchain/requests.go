package gchain

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"
)

// SyncHeaderReq carries a batch of relaychain (or solochain) headers,
// ordered by ascending number, with an optional authority-set change.
type SyncHeaderReq struct {
	Headers            []HeaderToSync
	AuthoritySetChange *AuthoritySetChange
}

type scaleSyncHeaderReq struct {
	Headers            []scaleHeaderToSync
	AuthoritySetChange *scaleAuthoritySetChange
}

func toSCALEHeadersToSync(hs []HeaderToSync) []scaleHeaderToSync {
	out := make([]scaleHeaderToSync, len(hs))
	for i, h := range hs {
		out[i] = h.toSCALE()
	}
	return out
}

func fromSCALEHeadersToSync(shs []scaleHeaderToSync) ([]HeaderToSync, error) {
	out := make([]HeaderToSync, len(shs))
	for i, sh := range shs {
		h, err := sh.toHeaderToSync()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func (r SyncHeaderReq) Encode() ([]byte, error) {
	return scale.Marshal(scaleSyncHeaderReq{
		Headers:            toSCALEHeadersToSync(r.Headers),
		AuthoritySetChange: toSCALEAuthoritySetChange(r.AuthoritySetChange),
	})
}

func DecodeSyncHeaderReq(b []byte) (SyncHeaderReq, error) {
	var sr scaleSyncHeaderReq
	if err := scale.Unmarshal(b, &sr); err != nil {
		return SyncHeaderReq{}, fmt.Errorf("failed to decode sync header request: %w", err)
	}
	hs, err := fromSCALEHeadersToSync(sr.Headers)
	if err != nil {
		return SyncHeaderReq{}, err
	}
	return SyncHeaderReq{
		Headers:            hs,
		AuthoritySetChange: fromSCALEAuthoritySetChange(sr.AuthoritySetChange),
	}, nil
}

// SyncParachainHeaderReq carries a batch of parachain headers
// and a proof of the last header's inclusion in relaychain state.
type SyncParachainHeaderReq struct {
	Headers []Header
	Proof   StorageProof
}

type scaleSyncParachainHeaderReq struct {
	Headers []scaleHeader
	Proof   StorageProof
}

func (r SyncParachainHeaderReq) Encode() ([]byte, error) {
	return scale.Marshal(scaleSyncParachainHeaderReq{
		Headers: toSCALEHeaders(r.Headers),
		Proof:   r.Proof,
	})
}

func DecodeSyncParachainHeaderReq(b []byte) (SyncParachainHeaderReq, error) {
	var sr scaleSyncParachainHeaderReq
	if err := scale.Unmarshal(b, &sr); err != nil {
		return SyncParachainHeaderReq{}, fmt.Errorf("failed to decode sync parachain header request: %w", err)
	}
	hs, err := fromSCALEHeaders(sr.Headers)
	if err != nil {
		return SyncParachainHeaderReq{}, err
	}
	return SyncParachainHeaderReq{Headers: hs, Proof: sr.Proof}, nil
}

// SyncCombinedHeadersReq is a relaychain header batch
// followed by an optional parachain header batch anchored to it.
type SyncCombinedHeadersReq struct {
	RelaychainHeaders  []HeaderToSync
	AuthoritySetChange *AuthoritySetChange

	ParachainHeaders []Header
	Proof            StorageProof
}

type scaleSyncCombinedHeadersReq struct {
	RelaychainHeaders  []scaleHeaderToSync
	AuthoritySetChange *scaleAuthoritySetChange
	ParachainHeaders   []scaleHeader
	Proof              StorageProof
}

func (r SyncCombinedHeadersReq) Encode() ([]byte, error) {
	return scale.Marshal(scaleSyncCombinedHeadersReq{
		RelaychainHeaders:  toSCALEHeadersToSync(r.RelaychainHeaders),
		AuthoritySetChange: toSCALEAuthoritySetChange(r.AuthoritySetChange),
		ParachainHeaders:   toSCALEHeaders(r.ParachainHeaders),
		Proof:              r.Proof,
	})
}

func DecodeSyncCombinedHeadersReq(b []byte) (SyncCombinedHeadersReq, error) {
	var sr scaleSyncCombinedHeadersReq
	if err := scale.Unmarshal(b, &sr); err != nil {
		return SyncCombinedHeadersReq{}, fmt.Errorf("failed to decode sync combined headers request: %w", err)
	}
	relay, err := fromSCALEHeadersToSync(sr.RelaychainHeaders)
	if err != nil {
		return SyncCombinedHeadersReq{}, err
	}
	para, err := fromSCALEHeaders(sr.ParachainHeaders)
	if err != nil {
		return SyncCombinedHeadersReq{}, err
	}
	return SyncCombinedHeadersReq{
		RelaychainHeaders:  relay,
		AuthoritySetChange: fromSCALEAuthoritySetChange(sr.AuthoritySetChange),
		ParachainHeaders:   para,
		Proof:              sr.Proof,
	}, nil
}

// DispatchBlockReq carries blocks to feed, in ascending order.
type DispatchBlockReq struct {
	Blocks []BlockHeaderWithChanges
}

type scaleDispatchBlockReq struct {
	Blocks []scaleBlockHeaderWithChanges
}

func (r DispatchBlockReq) Encode() ([]byte, error) {
	sr := scaleDispatchBlockReq{
		Blocks: make([]scaleBlockHeaderWithChanges, len(r.Blocks)),
	}
	for i, b := range r.Blocks {
		sr.Blocks[i] = scaleBlockHeaderWithChanges{
			BlockHeader:    b.BlockHeader.toSCALE(),
			StorageChanges: b.StorageChanges.toSCALE(),
		}
	}
	return scale.Marshal(sr)
}

func DecodeDispatchBlockReq(b []byte) (DispatchBlockReq, error) {
	var sr scaleDispatchBlockReq
	if err := scale.Unmarshal(b, &sr); err != nil {
		return DispatchBlockReq{}, fmt.Errorf("failed to decode dispatch block request: %w", err)
	}
	out := DispatchBlockReq{
		Blocks: make([]BlockHeaderWithChanges, len(sr.Blocks)),
	}
	for i, sb := range sr.Blocks {
		hdr, err := sb.BlockHeader.toHeader()
		if err != nil {
			return DispatchBlockReq{}, fmt.Errorf("block at index %d: %w", i, err)
		}
		out.Blocks[i] = BlockHeaderWithChanges{
			BlockHeader:    hdr,
			StorageChanges: sb.StorageChanges.toStorageChanges(),
		}
	}
	return out, nil
}
