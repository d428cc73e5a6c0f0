package engine

// Arithmetic over GF(2^32) with the irreducible polynomial
// x^32 + x^7 + x^3 + x^2 + 1. The linear engine maps every prefix value
// through a fixed power of the Frobenius (squaring) automorphism to derive
// the key of its auxiliary candidate index. The map is a field
// automorphism, so it is a bijection on 32-bit values and distinct
// prefixes can never collide on their keys.

const gfPoly uint32 = 0x8D // x^7 + x^3 + x^2 + 1, with implicit x^32

// gfMul multiplies two field elements, reducing modulo the polynomial.
func gfMul(a, b uint32) uint32 {
	var acc uint32
	for b != 0 {
		if b&1 != 0 {
			acc ^= a
		}
		b >>= 1
		carry := a & 0x80000000
		a <<= 1
		if carry != 0 {
			a ^= gfPoly
		}
	}
	return acc
}

// fieldKey raises v to the 2^16-th power by repeated squaring.
func fieldKey(v uint32) uint32 {
	for i := 0; i < 16; i++ {
		v = gfMul(v, v)
	}
	return v
}
