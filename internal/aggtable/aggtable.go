// Package aggtable implements the fixed-capacity open-addressed hash table
// that accumulates per-station temperature statistics.
//
// The layout mirrors the original core (hash_table.rs): parallel hash,
// prefix, and entry arrays rather than an array of structs, a bounded
// five-slot linear probe evaluated unconditionally so the compiler can
// vectorize it, and hash==0 as the empty-slot sentinel. Station names
// longer than nameCapacity bytes are truncated in storage but still
// hashed over their full length.
package aggtable

import (
	"fmt"
	"math/bits"
	"os"
)

// magicConst is (2^64)/phi, the golden-ratio multiplicative hash constant.
const magicConst uint64 = 0x9E3779B97F4A7C15

// nameCapacity bounds how much of a station name is retained verbatim.
// The WMO station identifiers the format is built around never approach
// this, but the table must not corrupt memory on pathological input.
const nameCapacity = 128

// probeLength is the number of consecutive slots Lookup inspects before
// giving up. The table must be sized so every distinct key the workload
// contains resolves within this many slots; see New and
// strictAssertEnabled.
const probeLength = 5

// Entry holds the running aggregate for one station.
type Entry struct {
	Sum   int32
	Count uint32
	Min   int16
	Max   int16
	Len   uint8
}

// Table is a fixed-capacity, power-of-two-sized open-addressed hash table.
type Table struct {
	hash    []uint64
	prefix  []uint64
	entries []Entry
	names   [][nameCapacity]byte
	mask    uint64
}

// New allocates a table with room for size slots. size must be a power of
// two; it is rounded up to the next one otherwise.
func New(size int) *Table {
	if size < 1 {
		size = 1
	}
	size = int(nextPowerOfTwo(uint64(size)))

	return &Table{
		hash:    make([]uint64, size),
		prefix:  make([]uint64, size),
		entries: make([]Entry, size),
		names:   make([][nameCapacity]byte, size),
		mask:    uint64(size) - 1,
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return 1 << uint(bits.Len64(v-1))
}

// Len reports the table's slot capacity.
func (t *Table) Len() int { return len(t.entries) }

// Prefix returns the first min(len(name), 8) bytes of name packed
// little-endian into a uint64, zero-padded on the high end.
func Prefix(name []byte) uint64 {
	n := len(name)
	if n > 8 {
		n = 8
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(name[i])
	}
	return v
}

// Hash computes the table key for name: a 64-bit mixed hash and the raw
// 8-byte prefix used as a cheap secondary check during probing. Names of
// up to 8 bytes hash their prefix alone; names of 9 to 16 bytes fold their
// prefix against their last 8 bytes (which may overlap the prefix); longer
// names additionally XOR every interior 8-byte word.
func Hash(name []byte) (hash, prefix uint64) {
	length := len(name)
	prefix = Prefix(name)

	suffixOffset := length - 8
	if suffixOffset < 0 {
		suffixOffset = 0
	}
	var suffix uint64
	if length > 8 {
		suffix = loadUnaligned64(name[suffixOffset:])
	}

	if length <= 16 {
		h := int64((prefix ^ suffix) * magicConst)
		h ^= h >> 35
		return uint64(h), prefix
	}

	h := int64(prefix)
	i := 8
	for i+8 < length {
		h ^= int64(loadUnaligned64(name[i:]))
		i += 8
	}
	h ^= int64(suffix)
	h = int64(uint64(h) * magicConst)
	h ^= h >> 35
	return uint64(h), prefix
}

// loadUnaligned64 reads up to 8 bytes from b, little-endian, zero-padding
// if b is shorter. It never reads past len(b).
func loadUnaligned64(b []byte) uint64 {
	n := len(b)
	if n > 8 {
		n = 8
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Lookup finds the slot for (hash, prefix): either the slot already
// holding that key, or the first empty slot a linear probe starting at
// hash&mask would find within probeLength slots. All probeLength
// comparisons are made unconditionally so the loop has no early-exit
// branch for the compiler to mispredict.
func (t *Table) Lookup(hash, prefix uint64) int {
	mask := t.mask
	slot := hash & mask

	var matchBits uint32
	for i := uint64(0); i < probeLength; i++ {
		idx := (slot + i) & mask
		h := t.hash[idx]
		match := h == 0 || (h == hash && t.prefix[idx] == prefix)
		if match {
			matchBits |= 1 << i
		}
	}

	if matchBits == 0 {
		if strictAssertEnabled {
			panic(fmt.Sprintf("aggtable: no free slot within %d probes for hash %#x (table size %d); widen the table", probeLength, hash, len(t.entries)))
		}
		matchBits = 1 << (probeLength - 1)
	}

	first := bits.TrailingZeros32(matchBits)
	return int((slot + uint64(first)) & mask)
}

// Update applies temp to the entry at slot, initializing it with name's
// hash and prefix on first touch. slot must come from Lookup(hash, prefix)
// for this name.
func (t *Table) Update(slot int, hash, prefix uint64, name []byte, temp int16) {
	entry := &t.entries[slot]

	if entry.Len != 0 {
		entry.Sum += int32(temp)
		entry.Count++
		if temp < entry.Min {
			entry.Min = temp
		}
		if temp > entry.Max {
			entry.Max = temp
		}
		return
	}

	entry.Sum = int32(temp)
	entry.Count = 1
	entry.Min = temp
	entry.Max = temp

	n := copy(t.names[slot][:], name)
	entry.Len = uint8(n)

	t.hash[slot] = hash
	t.prefix[slot] = prefix
}

// MergeEntry folds an already-aggregated entry (typically from another
// table built over a disjoint partition of the input) into slot, adding
// sums and counts and widening min/max. It is the associative operator
// that lets per-worker private tables be combined after a parallel run.
func (t *Table) MergeEntry(slot int, hash, prefix uint64, name []byte, src Entry) {
	entry := &t.entries[slot]

	if entry.Len == 0 {
		entry.Sum = src.Sum
		entry.Count = src.Count
		entry.Min = src.Min
		entry.Max = src.Max

		n := copy(t.names[slot][:], name)
		entry.Len = uint8(n)

		t.hash[slot] = hash
		t.prefix[slot] = prefix
		return
	}

	entry.Sum += src.Sum
	entry.Count += src.Count
	if src.Min < entry.Min {
		entry.Min = src.Min
	}
	if src.Max > entry.Max {
		entry.Max = src.Max
	}
}

// NamedEntry pairs a stored name with its aggregate, returned by Entries.
type NamedEntry struct {
	Name  string
	Entry Entry
}

// Entries returns every occupied slot's name and aggregate. Order is
// unspecified; callers that need deterministic output sort by Name.
func (t *Table) Entries() []NamedEntry {
	out := make([]NamedEntry, 0, len(t.entries))
	for i := range t.entries {
		e := t.entries[i]
		if e.Len == 0 {
			continue
		}
		out = append(out, NamedEntry{
			Name:  string(t.names[i][:e.Len]),
			Entry: e,
		})
	}
	return out
}

// strictAssertEnabled gates the debug-only probe-overflow assertion behind
// AGGTABLE_STRICT, so production runs fold the overflowing key into the
// last probed slot's aggregate instead of panicking on an undersized table.
var strictAssertEnabled = os.Getenv("AGGTABLE_STRICT") != ""
