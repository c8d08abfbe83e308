package driver

import (
	"bytes"
	"sort"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/coldpath/stationstats/internal/aggtable"
)

func runToMap(t testing.TB, data []byte) map[string]aggtable.Entry {
	t.Helper()
	tbl := aggtable.New(1 << 12)
	require.NoError(t, RunReadBuffer(bytes.NewReader(data), tbl))

	out := map[string]aggtable.Entry{}
	for _, ne := range tbl.Entries() {
		out[ne.Name] = ne.Entry
	}
	return out
}

func TestHamburgBulawayoScenario(t *testing.T) {
	data := []byte("Hamburg;12.0\nBulawayo;8.9\nHamburg;14.4\nBulawayo;22.1\n")
	got := runToMap(t, data)

	require.Contains(t, got, "Hamburg")
	require.Contains(t, got, "Bulawayo")

	h := got["Hamburg"]
	assert.Equal(t, uint32(2), h.Count)
	assert.Equal(t, int16(120), h.Min)
	assert.Equal(t, int16(144), h.Max)
	assert.Equal(t, int32(264), h.Sum)

	b := got["Bulawayo"]
	assert.Equal(t, uint32(2), b.Count)
	assert.Equal(t, int16(89), b.Min)
	assert.Equal(t, int16(221), b.Max)
}

func TestXiDoubleSampleScenario(t *testing.T) {
	data := []byte("Xi'an;21.5\nXi'an;21.5\n")
	got := runToMap(t, data)

	x := got["Xi'an"]
	assert.Equal(t, uint32(2), x.Count)
	assert.Equal(t, int32(430), x.Sum)
	assert.Equal(t, int16(215), x.Min)
	assert.Equal(t, int16(215), x.Max)
}

func TestLongNameSlowPathScenario(t *testing.T) {
	longName := "Llanfairpwllgwyngyllgogerychwyrndrobwllllantysiliogogogoch"
	data := []byte(longName + ";5.5\n" + longName + ";6.5\n")
	got := runToMap(t, data)

	e := got[longName]
	assert.Equal(t, uint32(2), e.Count)
	assert.Equal(t, int16(55), e.Min)
	assert.Equal(t, int16(65), e.Max)
}

func TestBlockBoundaryScenario(t *testing.T) {
	// Craft a line whose newline (offset 34) lies past the first 32-byte
	// window, with its semicolon at offset 30, so FindDelimiters sees no
	// newline in the first window and the long-line path takes over.
	padName := bytes.Repeat([]byte{'A'}, 30)
	var buf bytes.Buffer
	buf.Write(padName)
	buf.WriteString(";7.3\n")
	buf.WriteString("Oslo;1.0\n")

	got := runToMap(t, buf.Bytes())
	assert.Equal(t, int16(73), got[string(padName)].Max)
	assert.Equal(t, int16(10), got["Oslo"].Max)
}

func TestExtremeValuesScenario(t *testing.T) {
	data := []byte("Verkhoyansk;-67.8\nDeathValley;56.7\n")
	got := runToMap(t, data)

	assert.Equal(t, int16(-678), got["Verkhoyansk"].Min)
	assert.Equal(t, int16(567), got["DeathValley"].Max)
}

// TestEmptyTailScenario covers Scenario 6: trailing partial data after the
// last '\n' is ignored rather than processed.
func TestEmptyTailScenario(t *testing.T) {
	data := []byte("Oslo;1.0\npartial")
	got := runToMap(t, data)

	require.Len(t, got, 1)
	o := got["Oslo"]
	assert.Equal(t, uint32(1), o.Count)
	assert.Equal(t, int16(10), o.Min)
	assert.Equal(t, int16(10), o.Max)
}

func TestRunReadBufferAcrossSmallReads(t *testing.T) {
	data := []byte("Accra;30.1\nKyiv;-2.4\nAccra;31.9\n")
	tbl := aggtable.New(1 << 12)
	require.NoError(t, RunReadBuffer(iotest.OneByteReader(bytes.NewReader(data)), tbl))

	got := map[string]aggtable.Entry{}
	for _, ne := range tbl.Entries() {
		got[ne.Name] = ne.Entry
	}

	assert.Equal(t, uint32(2), got["Accra"].Count)
	assert.Equal(t, int16(301), got["Accra"].Min)
	assert.Equal(t, int16(319), got["Accra"].Max)
	assert.Equal(t, uint32(1), got["Kyiv"].Count)
}

// Property 6: stream idempotence at boundaries. Streaming the input through
// RunReadBuffer must produce the same aggregates as splitting the same
// bytes into three newline-aligned regions and scanning them interleaved
// with runMmapRegions.
func TestStreamIdempotenceAtBoundaries(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := []string{"Oslo", "Accra", "Xi'an", "St. John's", "Bulawayo"}
		n := rapid.IntRange(1, 30).Draw(t, "n")

		var buf bytes.Buffer
		type reading struct {
			name string
			temp string
		}
		var readings []reading
		for i := 0; i < n; i++ {
			name := rapid.SampledFrom(names).Draw(t, "name")
			whole := rapid.IntRange(0, 99).Draw(t, "whole")
			frac := rapid.IntRange(0, 9).Draw(t, "frac")
			neg := rapid.Bool().Draw(t, "neg")
			sign := ""
			if neg {
				sign = "-"
			}
			temp := sign + itoa(whole) + "." + itoa(frac)
			buf.WriteString(name)
			buf.WriteByte(';')
			buf.WriteString(temp)
			buf.WriteByte('\n')
			readings = append(readings, reading{name, temp})
		}

		tbl := aggtable.New(1 << 10)
		require.NoError(t, RunReadBuffer(bytes.NewReader(buf.Bytes()), tbl))

		regionTbl := aggtable.New(1 << 10)
		require.NoError(t, runMmapRegions(append(bytes.Clone(buf.Bytes()), '\n'), regionTbl, 3))

		entries1 := tbl.Entries()
		entries2 := regionTbl.Entries()

		sort.Slice(entries1, func(i, j int) bool { return entries1[i].Name < entries1[j].Name })
		sort.Slice(entries2, func(i, j int) bool { return entries2[i].Name < entries2[j].Name })

		require.Equal(t, len(entries1), len(entries2))
		for i := range entries1 {
			assert.Equal(t, entries1[i].Name, entries2[i].Name)
			assert.Equal(t, entries1[i].Entry.Sum, entries2[i].Entry.Sum)
			assert.Equal(t, entries1[i].Entry.Count, entries2[i].Entry.Count)
			assert.Equal(t, entries1[i].Entry.Min, entries2[i].Entry.Min)
			assert.Equal(t, entries1[i].Entry.Max, entries2[i].Entry.Max)
		}
	})
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var b []byte
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	for l, r := 0, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
	return string(b)
}

func TestMergeCombinesDisjointTables(t *testing.T) {
	a := aggtable.New(16)
	b := aggtable.New(16)

	ha, pa := aggtable.Hash([]byte("Oslo"))
	slotA := a.Lookup(ha, pa)
	a.Update(slotA, ha, pa, []byte("Oslo"), 10)

	hb, pb := aggtable.Hash([]byte("Oslo"))
	slotB := b.Lookup(hb, pb)
	b.Update(slotB, hb, pb, []byte("Oslo"), 30)

	dst := aggtable.New(16)
	Merge(dst, a)
	Merge(dst, b)

	entries := dst.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int32(40), entries[0].Entry.Sum)
	assert.Equal(t, uint32(2), entries[0].Entry.Count)
	assert.Equal(t, int16(10), entries[0].Entry.Min)
	assert.Equal(t, int16(30), entries[0].Entry.Max)
}
