// Command stationdiag reports name-length, hash-collision, and probe-depth
// statistics for a station list against the aggregation table's hash and
// sizing, without touching the hot aggregation path itself.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/coldpath/stationstats/internal/aggtable"
)

func main() {
	var (
		tableSize = pflag.IntP("table-size", "t", 1<<16, "aggregation table capacity to simulate probing against")
		verbose   = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: stationdiag [flags] <station-list-file>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	names, err := readNames(pflag.Arg(0))
	if err != nil {
		logger.Error("failed to read station list", "err", err)
		os.Exit(1)
	}
	logger.Debug("loaded station names", "count", len(names))

	report := analyze(names, *tableSize)
	report.print(os.Stdout)
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names, sc.Err()
}

type diagReport struct {
	total       int
	minLen      int
	maxLen      int
	sumLen      int
	hashKeyDups int
	probeHisto  [6]int // probeHisto[i] = count of names resolving at probe depth i; index 5 = overflow
	lengthHisto map[int]int
}

func analyze(names []string, tableSize int) diagReport {
	r := diagReport{minLen: -1, lengthHisto: map[int]int{}}
	tbl := aggtable.New(tableSize)
	seenKeys := map[[2]uint64]string{}
	slotKeys := map[int][2]uint64{}

	for _, name := range names {
		n := len(name)
		r.total++
		r.sumLen += n
		r.lengthHisto[n]++
		if r.minLen < 0 || n < r.minLen {
			r.minLen = n
		}
		if n > r.maxLen {
			r.maxLen = n
		}

		hash, prefix := aggtable.Hash([]byte(name))
		key := [2]uint64{hash, prefix}
		if other, ok := seenKeys[key]; ok && other != name {
			r.hashKeyDups++
		}
		seenKeys[key] = name

		before := tbl.Lookup(hash, prefix)
		slot := hash & uint64(tbl.Len()-1)
		depth := int((uint64(before) - slot + uint64(tbl.Len())) % uint64(tbl.Len()))
		if depth > 5 {
			depth = 5
		}
		if occupant, ok := slotKeys[before]; !ok {
			slotKeys[before] = key
		} else if occupant != key {
			// No candidate within the probe budget: Lookup fell back to
			// the last probed slot, which already holds another key.
			depth = 5
		}
		r.probeHisto[depth]++
		tbl.Update(before, hash, prefix, []byte(name), 0)
	}

	return r
}

func (r diagReport) print(w *os.File) {
	fmt.Fprintf(w, "stations analyzed: %d\n", r.total)
	if r.total == 0 {
		return
	}

	mean := float64(r.sumLen) / float64(r.total)
	fmt.Fprintf(w, "name length: min=%d max=%d mean=%.2f\n", r.minLen, r.maxLen, mean)

	fmt.Fprintln(w, "name length histogram:")
	lengths := make([]int, 0, len(r.lengthHisto))
	for l := range r.lengthHisto {
		lengths = append(lengths, l)
	}
	sort.Ints(lengths)
	for _, l := range lengths {
		fmt.Fprintf(w, "  %3d bytes: %d\n", l, r.lengthHisto[l])
	}

	fmt.Fprintf(w, "hash key collisions (distinct names sharing hash+prefix): %d\n", r.hashKeyDups)

	fmt.Fprintln(w, "probe depth histogram:")
	for depth, count := range r.probeHisto {
		label := fmt.Sprintf("%d", depth)
		if depth == 5 {
			label = "5+ (overflow)"
		}
		fmt.Fprintf(w, "  depth %s: %d\n", label, count)
	}
}
