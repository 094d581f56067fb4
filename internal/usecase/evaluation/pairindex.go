package evaluation

import "math/bits"

// PairIndex maps (user, item) to user*(maxItem+1)+item, a bijection between
// [0, maxUser] x [0, maxItem] and [0, (maxUser+1)*(maxItem+1)).
// ok is false for ids outside the domain or when the index would overflow.
func PairIndex(user, item, maxItem int64) (idx uint64, ok bool) {
	if user < 0 || item < 0 || maxItem < 0 || item > maxItem {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(user), uint64(maxItem)+1)
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(lo, uint64(item), 0)
	if carry != 0 {
		return 0, false
	}
	return sum, true
}

// PairFromIndex inverts PairIndex for the same maxItem.
func PairFromIndex(idx uint64, maxItem int64) (user, item int64) {
	width := uint64(maxItem) + 1
	return int64(idx / width), int64(idx % width) //nolint:gosec // inverse of a checked PairIndex
}

// domainSize returns (maxUser+1)*(maxItem+1), or false on overflow.
func domainSize(maxUser, maxItem int64) (uint64, bool) {
	if maxUser < 0 || maxItem < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(maxUser)+1, uint64(maxItem)+1)
	return lo, hi == 0
}
