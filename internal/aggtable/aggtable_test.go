package aggtable

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Property 4: hash purity. Hash must be a pure function of its input bytes,
// and distinct names must (almost always) produce distinct (hash, prefix)
// pairs.
func TestHashPurity(t *testing.T) {
	names := []string{"Cardinal", "Greater Manchester", "Ur"}

	seen := make(map[[2]uint64]string)
	for _, n := range names {
		h1, p1 := Hash([]byte(n))
		h2, p2 := Hash([]byte(n))
		require.Equal(t, h1, h2, "hash must be deterministic for %q", n)
		require.Equal(t, p1, p2, "prefix must be deterministic for %q", n)

		key := [2]uint64{h1, p1}
		if other, ok := seen[key]; ok {
			t.Fatalf("hash collision between %q and %q", n, other)
		}
		seen[key] = n
	}
}

func TestHashPurityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 120).Draw(t, "n")
		name := make([]byte, n)
		for i := range name {
			name[i] = byte(rapid.IntRange('a', 'z').Draw(t, "c"))
		}

		h1, p1 := Hash(name)
		h2, p2 := Hash(name)
		assert.Equal(t, h1, h2)
		assert.Equal(t, p1, p2)
	})
}

func TestLookupDistinctKeys(t *testing.T) {
	tbl := New(16)

	h1, p1 := Hash([]byte("Cardinal"))
	h2, p2 := Hash([]byte("Wolsey"))

	assert.NotEqual(t, tbl.Lookup(h1, p1), tbl.Lookup(h2, p2))
}

func TestLookupAndUpdate(t *testing.T) {
	tbl := New(16)

	key1 := []byte("Cardinal")
	key2 := []byte("Wolsey")

	h1, p1 := Hash(key1)
	h2, p2 := Hash(key2)

	slot1 := tbl.Lookup(h1, p1)
	slot2 := tbl.Lookup(h2, p2)

	tbl.Update(slot1, h1, p1, key1, 300)
	tbl.Update(slot2, h2, p2, key2, 20)

	assert.Equal(t, int32(300), tbl.entries[slot1].Sum)
	assert.Equal(t, int32(20), tbl.entries[slot2].Sum)
}

// Property 5: table aggregation. Feeding the same name repeatedly must
// produce the same sum/count/min/max as computing them directly, and the
// stored name must round-trip exactly.
func TestTableAggregationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tbl := New(64)

		type reading struct {
			name string
			temp int16
		}
		stationNames := []string{"Hamburg", "Bulawayo", "Xi'an", "St. John's"}

		n := rapid.IntRange(1, 40).Draw(t, "n")
		readings := make([]reading, n)
		for i := range readings {
			name := rapid.SampledFrom(stationNames).Draw(t, "name")
			temp := int16(rapid.IntRange(-999, 999).Draw(t, "temp"))
			readings[i] = reading{name, temp}
		}

		want := map[string]*Entry{}
		for _, r := range readings {
			e, ok := want[r.name]
			if !ok {
				e = &Entry{Sum: int32(r.temp), Count: 1, Min: r.temp, Max: r.temp}
				want[r.name] = e
				continue
			}
			e.Sum += int32(r.temp)
			e.Count++
			if r.temp < e.Min {
				e.Min = r.temp
			}
			if r.temp > e.Max {
				e.Max = r.temp
			}
		}

		for _, r := range readings {
			h, p := Hash([]byte(r.name))
			slot := tbl.Lookup(h, p)
			tbl.Update(slot, h, p, []byte(r.name), r.temp)
		}

		got := map[string]NamedEntry{}
		for _, ne := range tbl.Entries() {
			got[ne.Name] = ne
		}

		require.Len(t, got, len(want))
		for name, w := range want {
			g, ok := got[name]
			require.True(t, ok, "missing station %q", name)
			assert.Equal(t, w.Sum, g.Entry.Sum, "sum for %q", name)
			assert.Equal(t, w.Count, g.Entry.Count, "count for %q", name)
			assert.Equal(t, w.Min, g.Entry.Min, "min for %q", name)
			assert.Equal(t, w.Max, g.Entry.Max, "max for %q", name)
		}
	})
}

func TestEntriesSortedOutput(t *testing.T) {
	tbl := New(16)
	for _, name := range []string{"Oslo", "Kyiv", "Accra"} {
		h, p := Hash([]byte(name))
		slot := tbl.Lookup(h, p)
		tbl.Update(slot, h, p, []byte(name), 10)
	}

	entries := tbl.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"Accra", "Kyiv", "Oslo"}, names)
}

func TestNameTruncationBeyondCapacity(t *testing.T) {
	tbl := New(16)
	longName := make([]byte, nameCapacity+32)
	for i := range longName {
		longName[i] = byte('a' + i%26)
	}

	h, p := Hash(longName)
	slot := tbl.Lookup(h, p)
	tbl.Update(slot, h, p, longName, 1)

	entries := tbl.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Name, nameCapacity)
	assert.Equal(t, string(longName[:nameCapacity]), entries[0].Name)
}
