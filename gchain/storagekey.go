package gchain

import (
	"fmt"

	"github.com/ChainSafe/gossamer/lib/common"
	"github.com/ChainSafe/gossamer/pkg/scale"
)

// GrandpaAuthoritiesKey is the well-known key holding the encoded authority list.
var GrandpaAuthoritiesKey = []byte(":grandpa_authorities")

// GrandpaCurrentSetIDKey is the storage key of the current authority set ID.
var GrandpaCurrentSetIDKey = StorageValueKey("Grandpa", "CurrentSetId")

// StorageValueKey returns the key of a plain storage value:
// twox128(module) ++ twox128(item).
func StorageValueKey(module, item string) []byte {
	m, err := common.Twox128Hash([]byte(module))
	if err != nil {
		panic(fmt.Errorf("BUG: twox128 of module name failed: %w", err))
	}
	i, err := common.Twox128Hash([]byte(item))
	if err != nil {
		panic(fmt.Errorf("BUG: twox128 of item name failed: %w", err))
	}

	out := make([]byte, 0, len(m)+len(i))
	out = append(out, m...)
	return append(out, i...)
}

// StorageMapKeyTwox64Concat returns the key of an entry in a storage map
// whose hasher is twox64-concat: StorageValueKey ++ twox64(key) ++ key.
func StorageMapKeyTwox64Concat(module, item string, key []byte) []byte {
	h, err := common.Twox64(key)
	if err != nil {
		panic(fmt.Errorf("BUG: twox64 of map key failed: %w", err))
	}

	out := StorageValueKey(module, item)
	out = append(out, h...)
	return append(out, key...)
}

// ParasHeadsKey returns the relaychain storage key under which
// the head data of the given parachain is stored.
func ParasHeadsKey(id ParaID) []byte {
	enc, err := scale.Marshal(uint32(id))
	if err != nil {
		panic(fmt.Errorf("BUG: failed to encode para ID: %w", err))
	}
	return StorageMapKeyTwox64Concat("Paras", "Heads", enc)
}
