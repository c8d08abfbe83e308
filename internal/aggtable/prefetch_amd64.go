//go:build amd64 && gc && !purego

package aggtable

import "unsafe"

// prefetchT0 issues a PREFETCHT0 hint for the cache line containing p.
//
//go:noescape
func prefetchT0(p unsafe.Pointer)

// Prefetch hints the CPU to start loading the cache line holding the entry
// of hash's home slot before Update reads it, hiding memory latency across
// the stream driver's interleaved regions.
func (t *Table) Prefetch(hash uint64) {
	slot := hash & t.mask
	prefetchT0(unsafe.Pointer(&t.entries[slot]))
}
