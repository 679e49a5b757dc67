// Package gchaintest contains fixtures for tests that work with chain data.
package gchaintest

import (
	"fmt"

	"github.com/gordian-engine/glight/gchain"
)

// HeaderChain builds a deterministic chain of parent-linked headers.
//
// It is not safe for concurrent use.
type HeaderChain struct {
	headers []gchain.Header
}

// NewHeaderChain returns a HeaderChain whose first header is genesis.
func NewHeaderChain(genesis gchain.Header) *HeaderChain {
	return &HeaderChain{headers: []gchain.Header{genesis}}
}

// NewGenesis returns a genesis header at number 0 with the given state root.
func NewGenesis(stateRoot gchain.Hash) gchain.Header {
	return gchain.Header{
		Number:         0,
		StateRoot:      stateRoot,
		ExtrinsicsRoot: DeterministicHash("extrinsics", 0),
	}
}

// Extend appends one header per state root to the chain and returns the new headers.
func (c *HeaderChain) Extend(stateRoots ...gchain.Hash) []gchain.Header {
	out := make([]gchain.Header, len(stateRoots))
	for i, root := range stateRoots {
		tip := c.Tip()
		h := gchain.Header{
			ParentHash:     tip.Hash(),
			Number:         tip.Number + 1,
			StateRoot:      root,
			ExtrinsicsRoot: DeterministicHash("extrinsics", int(tip.Number+1)),
		}
		c.headers = append(c.headers, h)
		out[i] = h
	}
	return out
}

// ExtendN appends n headers with deterministic state roots.
func (c *HeaderChain) ExtendN(n int) []gchain.Header {
	roots := make([]gchain.Hash, n)
	next := int(c.Tip().Number) + 1
	for i := range roots {
		roots[i] = DeterministicHash("state", next+i)
	}
	return c.Extend(roots...)
}

// Tip returns the highest header in the chain.
func (c *HeaderChain) Tip() gchain.Header {
	return c.headers[len(c.headers)-1]
}

// Genesis returns the first header in the chain.
func (c *HeaderChain) Genesis() gchain.Header {
	return c.headers[0]
}

// Header returns the header at number n.
// It panics if n is outside the chain.
func (c *HeaderChain) Header(n gchain.BlockNumber) gchain.Header {
	base := c.headers[0].Number
	if n < base || int(n-base) >= len(c.headers) {
		panic(fmt.Errorf("header %d not in chain [%d, %d]", n, base, c.Tip().Number))
	}
	return c.headers[n-base]
}

// Range returns the headers numbered from first through last inclusive.
func (c *HeaderChain) Range(first, last gchain.BlockNumber) []gchain.Header {
	out := make([]gchain.Header, 0, last-first+1)
	for n := first; n <= last; n++ {
		out = append(out, c.Header(n))
	}
	return out
}

// DeterministicHash returns a hash derived from label and n.
func DeterministicHash(label string, n int) gchain.Hash {
	return gchain.Blake2b256([]byte(fmt.Sprintf("%s-%d", label, n)))
}

// ToSync wraps headers for a sync request,
// attaching justification to the last header only.
func ToSync(headers []gchain.Header, justification []byte) []gchain.HeaderToSync {
	out := make([]gchain.HeaderToSync, len(headers))
	for i, h := range headers {
		out[i].Header = h
	}
	if len(out) > 0 {
		out[len(out)-1].Justification = justification
	}
	return out
}

// StateRoots returns the state roots of headers, in order.
func StateRoots(headers []gchain.Header) []gchain.Hash {
	out := make([]gchain.Hash, len(headers))
	for i, h := range headers {
		out[i] = h.StateRoot
	}
	return out
}
