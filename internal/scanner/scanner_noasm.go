//go:build !amd64 || !gc || purego

package scanner

// There is no AVX2 kernel on this build, so the runtime feature flag is
// cleared even where the CPU reports AVX2 (e.g. amd64 with purego).
func init() { hasAVX2 = false }

// findDelimitersAVX2 is never invoked on this build (hasAVX2 is always
// false), but the symbol must exist for scanner.go to compile.
func findDelimitersAVX2(p *byte) (semicolons, newlines uint32) {
	panic("scanner: findDelimitersAVX2 called without AVX2 support")
}
