package gmerkle

import (
	"errors"
	"fmt"
)

// MerkleScheme specifies the details on producing a merkle tree from an ordered collection of leaves.
// Type parameter L is the leaf data, and I is the ID type of the nodes.
// The ID type will usually be a fixed-size array holding a cryptographic hash.
type MerkleScheme[L any, I comparable] interface {
	// How many children each branch must have
	// (excepting the rightmost branch in a row, which will have at least 1 element
	// but possibly less than BranchFactor).
	BranchFactor() uint8

	// BranchID calculates the ID for a branch.
	// The childIDs slice may have fewer than BranchFactor elements
	// if it is the rightmost node in a row,
	// but it will always have at least two elements;
	// a lone rightmost child is raised to the next row unchanged.
	//
	// The childIDs slice must not be retained.
	BranchID(depth, rowIdx int, childIDs []I) (I, error)

	// LeafID calculates the ID for the given leaf data.
	LeafID(idx int, leafData L) (I, error)
}

// ErrNoLeaves is returned by [NewMerkleTree] when given an empty leaf slice.
// Callers that need a root for an empty collection must define it themselves.
var ErrNoLeaves = errors.New("merkle tree requires at least one leaf")

// ErrRootMismatch is returned by [VerifyProof] when the recomputed root
// does not match the expected root.
var ErrRootMismatch = errors.New("proof does not lead to expected root")

// MerkleTree is an immutable m-ary Merkle tree.
//
// All leaves must be known up front; there is no support for modifying a tree.
// As a result, methods are safe to call concurrently.
type MerkleTree[I comparable] struct {
	// Branch factor.
	m int

	// Rows of IDs; rows[0] holds the leaf IDs
	// and the last row contains only the root.
	// A lone rightmost child appears both in its own row
	// and, unchanged, as the rightmost entry of the row above.
	rows [][]I
}

// NewMerkleTree returns a new Merkle tree based on the given scheme and leaf data.
func NewMerkleTree[L any, I comparable](scheme MerkleScheme[L, I], leafData []L) (*MerkleTree[I], error) {
	m := int(scheme.BranchFactor()) // m as in "m-ary tree".
	if m < 2 {
		return nil, fmt.Errorf("branch factor must be at least 2 (got %d)", m)
	}
	if len(leafData) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]I, len(leafData))
	for i, ld := range leafData {
		id, err := scheme.LeafID(i, ld)
		if err != nil {
			return nil, fmt.Errorf("error generating leaf ID for leaf at index %d: %w", i, err)
		}
		leaves[i] = id
	}

	rows := [][]I{leaves}
	for depth := 1; len(rows[depth-1]) > 1; depth++ {
		prev := rows[depth-1]
		row := make([]I, (len(prev)+m-1)/m)
		for i := range row {
			start, end := childRange(m, i, len(prev))
			if end == start+1 {
				row[i] = prev[start]
				continue
			}

			id, err := scheme.BranchID(depth, i, prev[start:end])
			if err != nil {
				return nil, fmt.Errorf("failed to calculate branch ID at index %d in depth %d: %w", i, depth, err)
			}
			row[i] = id
		}
		rows = append(rows, row)
	}

	return &MerkleTree[I]{m: m, rows: rows}, nil
}

// RootID returns the ID of the root branch of the tree.
func (t *MerkleTree[I]) RootID() I {
	return t.rows[len(t.rows)-1][0]
}

// NLeaves reports the number of leaves the tree was built from.
func (t *MerkleTree[I]) NLeaves() int {
	return len(t.rows[0])
}

// LeafID returns the ID of the leaf at index idx.
func (t *MerkleTree[I]) LeafID(idx int) I {
	return t.rows[0][idx]
}

// ProofStep is one hashing step of an inclusion [Proof].
type ProofStep[I comparable] struct {
	// Depth and RowIdx identify the branch produced by this step,
	// and they are passed through to [MerkleScheme.BranchID].
	Depth, RowIdx int

	// Position is the index of the proven child among the branch's children.
	Position int

	// Siblings are the other children of the branch, in order.
	Siblings []I
}

// Proof is an inclusion proof for a single leaf.
type Proof[I comparable] struct {
	LeafIdx int
	Steps   []ProofStep[I]
}

// Proof returns the inclusion proof for the leaf at leafIdx.
func (t *MerkleTree[I]) Proof(leafIdx int) (Proof[I], error) {
	if leafIdx < 0 || leafIdx >= t.NLeaves() {
		return Proof[I]{}, fmt.Errorf("leaf index %d out of range [0, %d)", leafIdx, t.NLeaves())
	}

	p := Proof[I]{LeafIdx: leafIdx}
	idx := leafIdx
	for depth := 1; depth < len(t.rows); depth++ {
		prev := t.rows[depth-1]
		parent := idx / t.m
		start, end := childRange(t.m, parent, len(prev))
		if end-start > 1 {
			siblings := make([]I, 0, end-start-1)
			siblings = append(siblings, prev[start:idx]...)
			siblings = append(siblings, prev[idx+1:end]...)
			p.Steps = append(p.Steps, ProofStep[I]{
				Depth:    depth,
				RowIdx:   parent,
				Position: idx - start,
				Siblings: siblings,
			})
		}
		idx = parent
	}

	return p, nil
}

// VerifyProof recomputes the root from leafData and p,
// and returns nil if it equals root.
func VerifyProof[L any, I comparable](scheme MerkleScheme[L, I], root I, leafData L, p Proof[I]) error {
	m := int(scheme.BranchFactor())

	cur, err := scheme.LeafID(p.LeafIdx, leafData)
	if err != nil {
		return fmt.Errorf("error generating leaf ID: %w", err)
	}

	for i, s := range p.Steps {
		if s.Position < 0 || s.Position > len(s.Siblings) {
			return fmt.Errorf("step %d: position %d out of range for %d siblings", i, s.Position, len(s.Siblings))
		}
		if len(s.Siblings) == 0 || len(s.Siblings)+1 > m {
			return fmt.Errorf("step %d: invalid sibling count %d for branch factor %d", i, len(s.Siblings), m)
		}

		children := make([]I, 0, len(s.Siblings)+1)
		children = append(children, s.Siblings[:s.Position]...)
		children = append(children, cur)
		children = append(children, s.Siblings[s.Position:]...)

		cur, err = scheme.BranchID(s.Depth, s.RowIdx, children)
		if err != nil {
			return fmt.Errorf("step %d: failed to calculate branch ID: %w", i, err)
		}
	}

	if cur != root {
		return ErrRootMismatch
	}
	return nil
}

// childRange returns the bounds for slicing the children of the branch
// at parentIdx out of a child row of length rowLen.
func childRange(m, parentIdx, rowLen int) (start, end int) {
	start = m * parentIdx
	end = min(start+m, rowLen)
	return start, end
}
