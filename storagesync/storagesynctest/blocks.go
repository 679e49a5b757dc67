package storagesynctest

import (
	"fmt"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gchain/gchaintest"
	"github.com/gordian-engine/glight/gtrie"
)

// BlockFixture is a chain of headers whose state roots
// are produced by applying the matching blocks to an empty storage.
type BlockFixture struct {
	Chain   *gchaintest.HeaderChain
	Headers []gchain.Header
	Blocks  []gchain.BlockHeaderWithChanges
}

// NewBlockFixture returns a fixture of n blocks after a fresh genesis.
// The label keeps keys of different fixtures apart.
func NewBlockFixture(label string, n int) BlockFixture {
	ref := gtrie.New()
	chain := gchaintest.NewHeaderChain(gchaintest.NewGenesis(ref.Root()))

	changes := make([]gchain.StorageChanges, n)
	roots := make([]gchain.Hash, n)
	for i := range changes {
		changes[i] = gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte(fmt.Sprintf("%s-key-%d", label, i%3)), Value: []byte(fmt.Sprintf("value-%d", i))},
			},
			ChildStorageChanges: []gchain.ChildStorageChanges{
				{
					StorageKey: []byte(label + "-child"),
					Changes: []gchain.KeyValue{
						{Key: []byte(fmt.Sprintf("c-%d", i)), Value: []byte{byte(i)}},
					},
				},
			},
		}

		root, tx := ref.CalcRootIfChanges(changes[i].MainStorageChanges, changes[i].ChildStorageChanges)
		ref.ApplyChanges(root, tx)
		roots[i] = root
	}

	headers := chain.Extend(roots...)
	blocks := make([]gchain.BlockHeaderWithChanges, n)
	for i := range blocks {
		blocks[i] = gchain.BlockHeaderWithChanges{
			BlockHeader:    headers[i],
			StorageChanges: changes[i],
		}
	}

	return BlockFixture{Chain: chain, Headers: headers, Blocks: blocks}
}
