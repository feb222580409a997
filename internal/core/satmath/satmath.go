// Package satmath provides saturating unsigned arithmetic for reward and
// experience accounting.
//
// Replicated state transitions must never wrap on overflow: a balance or
// experience total that wraps produces divergent, exploitable results. Every
// operation in this package clamps at math.MaxUint64 instead.
package satmath

import (
	"math"
	"math/bits"
)

// Add returns a + b, saturating at math.MaxUint64.
func Add(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Mul returns a * b, saturating at math.MaxUint64.
func Mul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// Scale returns value * num / den using a 128-bit intermediate product, so
// the multiplication cannot overflow before the division.
//
// # Totality
//
// Scale is total: a zero denominator saturates (or returns 0 for a zero
// numerator product) rather than panicking, because transition code must
// not be able to halt a replica on malformed configuration.
func Scale(value, num, den uint64) uint64 {
	hi, lo := bits.Mul64(value, num)
	if den == 0 {
		if hi == 0 && lo == 0 {
			return 0
		}
		return math.MaxUint64
	}
	if hi >= den {
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo
}
