package storagesync

import (
	"slices"

	"github.com/gordian-engine/glight/gchain"
)

// StateRootQueue is a FIFO of validated state roots
// awaiting the blocks that produce them.
//
// The zero value is an empty queue ready to use.
type StateRootQueue struct {
	roots []gchain.Hash
}

func (q *StateRootQueue) Push(root gchain.Hash) {
	q.roots = append(q.roots, root)
}

// Front returns the oldest root, or false if the queue is empty.
func (q *StateRootQueue) Front() (gchain.Hash, bool) {
	if len(q.roots) == 0 {
		return gchain.Hash{}, false
	}
	return q.roots[0], true
}

// PopFront removes and returns the oldest root, or false if the queue is empty.
func (q *StateRootQueue) PopFront() (gchain.Hash, bool) {
	if len(q.roots) == 0 {
		return gchain.Hash{}, false
	}
	r := q.roots[0]
	q.roots = q.roots[1:]
	if len(q.roots) == 0 {
		// Release the backing array.
		q.roots = nil
	}
	return r, true
}

// PopBack removes and returns the newest root, or false if the queue is empty.
func (q *StateRootQueue) PopBack() (gchain.Hash, bool) {
	if len(q.roots) == 0 {
		return gchain.Hash{}, false
	}
	r := q.roots[len(q.roots)-1]
	q.roots = q.roots[:len(q.roots)-1]
	return r, true
}

func (q *StateRootQueue) Len() int {
	return len(q.roots)
}

// Roots returns a copy of the queued roots, oldest first.
func (q *StateRootQueue) Roots() []gchain.Hash {
	return slices.Clone(q.roots)
}
