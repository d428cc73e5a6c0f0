package engine

import "testing"

func TestGFMul(t *testing.T) {
	samples := []uint32{1, 2, 3, 0x80000000, 0xDEADBEEF, 0xFFFFFFFF, 0x0A000001}

	for _, a := range samples {
		if got := gfMul(a, 1); got != a {
			t.Errorf("gfMul(%08x, 1) = %08x, want identity", a, got)
		}
		if got := gfMul(a, 0); got != 0 {
			t.Errorf("gfMul(%08x, 0) = %08x, want 0", a, got)
		}
		for _, b := range samples {
			if gfMul(a, b) != gfMul(b, a) {
				t.Errorf("gfMul not commutative for %08x, %08x", a, b)
			}
		}
	}

	// Distributivity over addition (xor) on a few triples.
	triples := [][3]uint32{
		{0x12345678, 0x9ABCDEF0, 0x0F0F0F0F},
		{0xFFFFFFFF, 0x80000001, 0x00000002},
	}
	for _, tr := range triples {
		a, b, c := tr[0], tr[1], tr[2]
		if gfMul(a, b^c) != gfMul(a, b)^gfMul(a, c) {
			t.Errorf("gfMul not distributive for %08x, %08x, %08x", a, b, c)
		}
	}
}

// The field map is an automorphism, so distinct inputs must produce
// distinct keys.
func TestFieldKeyInjective(t *testing.T) {
	seen := make(map[uint32]uint32)
	for i := uint32(0); i < 10000; i++ {
		v := i*2654435761 + 1
		key := fieldKey(v)
		if prev, ok := seen[key]; ok && prev != v {
			t.Fatalf("fieldKey collision: %08x and %08x both map to %08x", prev, v, key)
		}
		seen[key] = v
	}
}
