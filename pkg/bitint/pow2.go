// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to validate and
suggest FFT sizes. Both functions are allocation free and constant time.

	bitint.IsPowerOfTwo(1024)   // true
	bitint.NextPowerOfTwo(1000) // 1024
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Sizes <= 0 map to 1.
//
// size-1 is used so that an exact power of two is returned unchanged:
// bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8) = 4 would double it.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two has
// a single bit set, so clearing its lowest set bit (n & (n-1)) yields zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
