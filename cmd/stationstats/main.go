// Command stationstats computes per-station min/mean/max temperature
// aggregates over a large "<station>;<temperature>\n" measurements file.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/coldpath/stationstats/internal/aggtable"
	"github.com/coldpath/stationstats/internal/driver"
	"github.com/coldpath/stationstats/internal/tempfmt"
)

const defaultTableSize = 1 << 16

func main() {
	var (
		workers   = pflag.IntP("workers", "w", 1, "number of goroutines for the mmap driver (1 disables the parallel extension)")
		useMmap   = pflag.BoolP("mmap", "m", true, "memory-map the input file instead of streaming it through a read buffer")
		tableSize = pflag.Int("table-size", defaultTableSize, "aggregation table capacity, rounded up to a power of two")
		verbose   = pflag.BoolP("verbose", "v", false, "enable debug logging")
		help      = pflag.BoolP("help", "h", false, "show usage")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: stationstats [flags] <measurements-file>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *help || pflag.NArg() != 1 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	path := pflag.Arg(0)
	start := time.Now()

	tbl, err := run(path, *workers, *useMmap, *tableSize, logger)
	if err != nil {
		logger.Error("stationstats failed", "path", path, "err", err)
		os.Exit(1)
	}

	logger.Debug("processed measurements", "elapsed", time.Since(start), "stations", len(tbl.Entries()))

	printSummary(os.Stdout, tbl)
}

func run(path string, workers int, useMmap bool, tableSize int, logger *log.Logger) (*aggtable.Table, error) {
	if workers > 1 {
		logger.Debug("running parallel mmap driver", "workers", workers)
		return driver.RunMmapParallel(path, workers, tableSize)
	}

	tbl := aggtable.New(tableSize)

	if useMmap {
		logger.Debug("running single-threaded mmap driver")
		if err := driver.RunMmap(path, tbl); err != nil {
			return nil, err
		}
		return tbl, nil
	}

	logger.Debug("running read-buffer driver")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := driver.RunReadBuffer(f, tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}

func printSummary(w *os.File, tbl *aggtable.Table) {
	entries := tbl.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b strings.Builder
	b.WriteByte('{')
	for i, ne := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s/%s/%s",
			ne.Name,
			tempfmt.FormatTemp(int32(ne.Entry.Min)),
			tempfmt.FormatMean(ne.Entry.Sum, ne.Entry.Count),
			tempfmt.FormatTemp(int32(ne.Entry.Max)),
		)
	}
	b.WriteByte('}')
	fmt.Fprintln(w, b.String())
}
