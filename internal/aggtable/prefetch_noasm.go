//go:build !amd64 || !gc || purego

package aggtable

// Prefetch is a no-op on platforms without a PREFETCHT0 equivalent wired
// up; Lookup works correctly, just without the latency-hiding hint.
func (t *Table) Prefetch(hash uint64) {}
