//go:build amd64 && gc && !purego

package scanner

// findDelimitersAVX2 reads 32 unaligned bytes starting at p and returns
// bitmasks of ';' and '\n' positions, computed with VPCMPEQB/VPMOVMSKB.
// The caller guarantees p points at at least WindowSize readable bytes.
//
//go:noescape
func findDelimitersAVX2(p *byte) (semicolons, newlines uint32)
