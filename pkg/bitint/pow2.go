// SPDX-License-Identifier: MIT
/*
Package bitint provides the integer helpers used for buffer sizing in the
render and real-time paths.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Round a queue capacity up so indices can be masked
	capacity := bitint.NextPowerOfTwo(100) // Returns 128

	// Number of 128-sample frames covering a waveform
	frames := bitint.CeilDiv(1000, 128) // Returns 8

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two are preserved instead of doubled:

	input 8: bits.Len(7) = 3, 1 << 3 = 8
	input 9: bits.Len(8) = 4, 1 << 4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output  Explanation
//	4      4       Already power of 2 (preserved)
//	5      8       Next power after 5
//	0      1       Handle zero case
//	-1     1       Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 holds only when exactly one bit is set.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// CeilDiv returns ceil(n/d) for n >= 0 and d > 0, and 0 for n <= 0.
func CeilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
