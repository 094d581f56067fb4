package evaluation

import (
	"math"
	"math/rand"
	"testing"
)

func TestPairIndex_Injective(t *testing.T) {
	const maxUser, maxItem = 30, 17
	seen := make(map[uint64][2]int64)
	for u := int64(0); u <= maxUser; u++ {
		for i := int64(0); i <= maxItem; i++ {
			idx, ok := PairIndex(u, i, maxItem)
			if !ok {
				t.Fatalf("PairIndex(%d,%d) not ok", u, i)
			}
			if prev, dup := seen[idx]; dup {
				t.Fatalf("collision: (%d,%d) and %v -> %d", u, i, prev, idx)
			}
			seen[idx] = [2]int64{u, i}

			gu, gi := PairFromIndex(idx, maxItem)
			if gu != u || gi != i {
				t.Fatalf("PairFromIndex(%d) = (%d,%d), want (%d,%d)", idx, gu, gi, u, i)
			}
		}
	}
	if size, _ := domainSize(maxUser, maxItem); uint64(len(seen)) != size {
		t.Errorf("indices = %d, want dense domain of %d", len(seen), size)
	}
}

func TestPairIndex_CollidingNaiveScheme(t *testing.T) {
	// (u-1)*(i-1) maps (2,3) and (3,2) to the same slot; the bijection must not.
	a, _ := PairIndex(2, 3, 10)
	b, _ := PairIndex(3, 2, 10)
	if a == b {
		t.Errorf("PairIndex(2,3) == PairIndex(3,2) == %d", a)
	}
}

func TestPairIndex_OutOfDomain(t *testing.T) {
	tests := []struct {
		name             string
		user, item, maxI int64
	}{
		{"negative user", -1, 0, 5},
		{"negative item", 0, -1, 5},
		{"item above max", 0, 6, 5},
		{"overflow", math.MaxInt64, 5, math.MaxInt64 - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := PairIndex(tt.user, tt.item, tt.maxI); ok {
				t.Error("ok = true, want false")
			}
		})
	}
}

func TestDomainSize(t *testing.T) {
	if got, ok := domainSize(2, 3); !ok || got != 12 {
		t.Errorf("domainSize(2,3) = %d, %v, want 12, true", got, ok)
	}
	if _, ok := domainSize(-1, 3); ok {
		t.Error("domainSize of empty dataset should not be ok")
	}
	if _, ok := domainSize(math.MaxInt64, math.MaxInt64); ok {
		t.Error("expected overflow")
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
