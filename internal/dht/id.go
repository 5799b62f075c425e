package dht

import (
	"crypto/sha1"
	"math/big"
)

// IDBits is the width of the Chord identifier space: SHA-1 produces
// 160-bit digests.
const IDBits = 160

var ringSize = new(big.Int).Lsh(big.NewInt(1), IDBits)

// HashID returns the SHA-1 digest of s as a 160-bit unsigned integer,
// the identifier of a node URL or a key.
func HashID(s string) *big.Int {
	sum := sha1.Sum([]byte(s))
	return new(big.Int).SetBytes(sum[:])
}

// modRing reduces x into [0, 2^160) using Euclidean modulus, so the
// result is always non-negative regardless of x's sign.
func modRing(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, ringSize)
}

// addMod returns (a+b) mod 2^160.
func addMod(a, b *big.Int) *big.Int {
	return modRing(new(big.Int).Add(a, b))
}

// succID returns (id+1) mod 2^160, the first identifier past id.
func succID(id *big.Int) *big.Int {
	return addMod(id, big.NewInt(1))
}

// powerOfTwo returns 2^j as a big.Int.
func powerOfTwo(j int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(j))
}

// idPlusPow2 returns (id + 2^j) mod 2^160.
func idPlusPow2(id *big.Int, j int) *big.Int {
	return addMod(id, powerOfTwo(j))
}

// InRange implements the circular containment test of the Chord ring:
// walking clockwise from start to end inclusive at both ends, does h
// get encountered? start == end is the convention for "full ring".
func InRange(start, end, h *big.Int) bool {
	if start.Cmp(end) == 0 {
		return true
	}
	if start.Cmp(end) < 0 {
		return h.Cmp(start) >= 0 && h.Cmp(end) <= 0
	}
	return h.Cmp(start) >= 0 || h.Cmp(end) <= 0
}

// inArcExclusiveStart tests membership in (start, end], the arc used by
// finger-table lookups and construction: start itself is excluded so a
// node is never considered responsible for its own identifier when
// scanning successors/fingers.
func inArcExclusiveStart(start, end, h *big.Int) bool {
	if h.Cmp(start) == 0 {
		return false
	}
	if start.Cmp(end) < 0 {
		return h.Cmp(start) > 0 && h.Cmp(end) <= 0
	}
	if start.Cmp(end) > 0 {
		return h.Cmp(start) > 0 || h.Cmp(end) <= 0
	}
	// start == end: the arc (start, start] wrapped all the way around
	// covers every id except start itself.
	return true
}
