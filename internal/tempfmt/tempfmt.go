// Package tempfmt decodes and formats fixed-point temperature readings.
//
// Readings are ASCII decimals with exactly one digit after the decimal
// point, an optional leading '-', and one or two integer digits:
// "9.1", "-9.1", "90.1", "-90.1". ParseTemp ports the branchless decoder
// from the original core (bin/008_branching.rs) bit for bit, trading the
// Rust version's unaligned 8-byte load for an explicit little-endian
// assembly from the input slice so it stays memory-safe without reading
// past the end of the record.
package tempfmt

import (
	"fmt"
	"math/bits"
)

const (
	dotBits          uint64 = 0x10101000
	magicMultiplier  uint64 = 100*0x1000000 + 10*0x10000 + 1
	maxEncodedLength        = 5 // "-90.1"
)

// ParseTemp decodes a temperature reading in tenths of a degree. bytes must
// hold between 3 and 5 ASCII characters matching [-]?\d{1,2}\.\d; behavior
// is undefined for any other input, matching the original's unchecked
// contract (the caller has already located the field with the scanner).
func ParseTemp(bytes []byte) int16 {
	var word uint64
	for i := len(bytes) - 1; i >= 0; i-- {
		word = word<<8 | uint64(bytes[i])
	}

	dot := uint64(bits.TrailingZeros64(^word & dotBits))
	sign := uint64(int64(^word<<59) >> 63)
	mask := ^(sign & 0xff)
	digits := ((word & mask) << (28 - dot)) & 0xf000f0f00
	abs := (digits * magicMultiplier) >> 32 & 0x3FF
	return int16((abs ^ sign) - sign)
}

// FormatTemp renders a tenths-of-a-degree value the way the summary line
// does: one fractional digit, no trailing zero trimming.
func FormatTemp(tenths int32) string {
	neg := tenths < 0
	if neg {
		tenths = -tenths
	}
	whole := tenths / 10
	frac := tenths % 10

	buf := make([]byte, 0, 8)
	if neg {
		buf = append(buf, '-')
	}
	buf = appendInt(buf, whole)
	buf = append(buf, '.', byte('0'+frac))
	return string(buf)
}

// FormatMean renders the mean of a station's readings the way the summary
// line does: real division of the tenths-scaled sum by the reading count,
// then one fractional digit. Unlike min/max, the mean is not itself a
// representable tenths value, so it goes through float formatting rather
// than FormatTemp.
func FormatMean(sum int32, count uint32) string {
	mean := float64(sum) / float64(count) / 10.0
	return fmt.Sprintf("%.1f", mean)
}

func appendInt(buf []byte, v int32) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	for l, r := start, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return buf
}
