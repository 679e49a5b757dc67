package gfinality

import "errors"

// ByzantineMajority returns the minimum value to exceed 2/3 of n.
// Use should always involve >= comparison, not >.
// For example, 2/3 of 12 is 8, so ByzantineMajority(12) = 9.
//
// ByzantineMajority(0) panics.
func ByzantineMajority(n uint64) uint64 {
	if n == 0 {
		panic(errors.New("BUG: ByzantineMajority: n must be positive"))
	}

	quo, rem := n/3, n%3
	if rem < 2 {
		return 2*quo + 1
	}
	return 2*quo + 2
}
