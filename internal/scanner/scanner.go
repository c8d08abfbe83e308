// Package scanner locates record and field delimiters in a byte window.
//
// It mirrors the split in the original Rust core (byte_buffer.rs): a
// hardware-accelerated path for 32-byte windows backed by AVX2
// byte-compare-to-mask, and a SWAR fallback that does the same thing with
// plain 64-bit arithmetic eight bytes at a time. Both must agree bit-for-bit
// on every input; FindDelimiters picks whichever is available at runtime.
package scanner

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

const (
	// WindowSize is the maximum number of bytes a single FindDelimiters
	// call inspects.
	WindowSize = 32

	msbMask uint64 = 0x8080808080808080
	lsbMask uint64 = 0x0101010101010101
)

var hasAVX2 = cpu.X86.HasAVX2

// FindDelimiters returns bitmasks of ';' and '\n' positions within window.
// Bit i of each mask is set iff window[i] equals the corresponding byte.
// window may be shorter than WindowSize; bits at or beyond len(window) are
// always zero. Dispatches to the AVX2 kernel when the host CPU supports it
// and the window is large enough to read unaligned, falling back to the
// SWAR implementation otherwise.
func FindDelimiters(window []byte) (semicolons, newlines uint32) {
	if hasAVX2 && len(window) >= WindowSize {
		semicolons, newlines = findDelimitersAVX2(&window[0])
		return semicolons, newlines
	}
	return FindDelimitersSWAR(window)
}

// FindDelimitersSWAR is the scalar fallback for FindDelimiters. It processes
// the window in 8-byte chunks using the carry-free form of the has-zero-byte
// trick (so a byte next to a match is never flagged by a borrow) and
// finishes any remainder with a byte-at-a-time tail loop.
func FindDelimitersSWAR(window []byte) (semicolons, newlines uint32) {
	n := len(window)
	if n > WindowSize {
		n = WindowSize
	}

	semiRepeat := lsbMask * uint64(';')
	nlRepeat := lsbMask * uint64('\n')

	i := 0
	for ; i+8 <= n; i += 8 {
		chunk := uint64(window[i]) | uint64(window[i+1])<<8 | uint64(window[i+2])<<16 |
			uint64(window[i+3])<<24 | uint64(window[i+4])<<32 | uint64(window[i+5])<<40 |
			uint64(window[i+6])<<48 | uint64(window[i+7])<<56

		semiDiff := chunk ^ semiRepeat
		semiMatches := ^(((semiDiff &^ msbMask) + ^msbMask) | semiDiff) & msbMask

		nlDiff := chunk ^ nlRepeat
		nlMatches := ^(((nlDiff &^ msbMask) + ^msbMask) | nlDiff) & msbMask

		offset := uint32(i)
		for semiMatches != 0 {
			bit := bits.TrailingZeros64(semiMatches) / 8
			semicolons |= 1 << (uint32(bit) + offset)
			semiMatches &= semiMatches - 1
		}
		for nlMatches != 0 {
			bit := bits.TrailingZeros64(nlMatches) / 8
			newlines |= 1 << (uint32(bit) + offset)
			nlMatches &= nlMatches - 1
		}
	}

	for ; i < n; i++ {
		switch window[i] {
		case ';':
			semicolons |= 1 << uint32(i)
		case '\n':
			newlines |= 1 << uint32(i)
		}
	}

	return semicolons, newlines
}

// BytePosition returns the index of the first occurrence of needle in
// haystack, or false if it does not occur. Uses the SWAR has-zero-byte trick
// over 8-byte chunks with a scalar tail, the slow path the stream driver
// falls back to when a window contains no newline (a name or temperature
// straddling the 32-byte window).
func BytePosition(haystack []byte, needle byte) (int, bool) {
	repeat := lsbMask * uint64(needle)

	i := 0
	n := len(haystack)
	for ; i+8 <= n; i += 8 {
		chunk := uint64(haystack[i]) | uint64(haystack[i+1])<<8 | uint64(haystack[i+2])<<16 |
			uint64(haystack[i+3])<<24 | uint64(haystack[i+4])<<32 | uint64(haystack[i+5])<<40 |
			uint64(haystack[i+6])<<48 | uint64(haystack[i+7])<<56

		diff := chunk ^ repeat
		matches := (diff - lsbMask) &^ diff & msbMask

		if matches != 0 {
			return i + bits.TrailingZeros64(matches)/8, true
		}
	}

	for ; i < n; i++ {
		if haystack[i] == needle {
			return i, true
		}
	}

	return 0, false
}
