package driver

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/coldpath/stationstats/internal/aggtable"
	"github.com/coldpath/stationstats/internal/scanner"
)

// RunMmap memory-maps path and processes it as three interleaved regions
// on the calling goroutine, the single-core memory-level-parallelism
// strategy from the original core's mmap binary: splitting the input into
// thirds and advancing all three scan cursors together lets independent
// cache misses overlap instead of serializing behind one cursor.
func RunMmap(path string, tbl *aggtable.Table) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("driver: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("driver: mmap %s: %w", path, err)
	}
	defer data.Unmap()

	return runMmapRegions([]byte(data), tbl, 3)
}

// runMmapRegions implements the N-way interleave over an in-memory buffer
// so it can be exercised by tests without touching the filesystem.
func runMmapRegions(data []byte, tbl *aggtable.Table, regionCount int) error {
	effective := trimToLastNewline(data)
	if len(effective) == 0 {
		return nil
	}

	regions := splitRegions(effective, regionCount)
	cursors := make([]int, len(regions))

	for {
		anyLive := false
		for i, r := range regions {
			if cursors[i] < len(r) {
				anyLive = true
				break
			}
		}
		if !anyLive {
			break
		}

		for i, r := range regions {
			if cursors[i] >= len(r) {
				continue
			}

			end := cursors[i] + scanner.WindowSize
			if end > len(r) {
				end = len(r)
			}
			window := r[cursors[i]:end]

			semicolons, newlines := scanner.FindDelimiters(window)
			if newlines == 0 {
				cursors[i] = processLongLine(r, tbl, cursors[i], len(r))
				continue
			}

			cursors[i] += consumeWindow(window, tbl, semicolons, newlines)
		}
	}

	return nil
}

func trimToLastNewline(data []byte) []byte {
	idx := lastIndexByte(data, '\n')
	if idx < 0 {
		return nil
	}
	return data[:idx]
}

// splitRegions divides buf into n roughly equal regions, each snapped
// back to the nearest preceding newline so no region's boundary falls
// mid-line.
func splitRegions(buf []byte, n int) [][]byte {
	if n < 1 {
		n = 1
	}
	if n == 1 {
		return [][]byte{buf}
	}

	regions := make([][]byte, 0, n)

	start := 0
	step := len(buf) / n
	for i := 1; i < n; i++ {
		target := step * i
		if target > len(buf) {
			target = len(buf)
		}
		boundary := lastIndexByte(buf[:target], '\n')
		if boundary < start {
			// No newline between start and target: this region is empty
			// and the next one begins at the same line start.
			regions = append(regions, buf[start:start])
			continue
		}
		regions = append(regions, buf[start:boundary])
		start = boundary + 1
	}
	regions = append(regions, buf[start:])

	return regions
}

// RunMmapParallel splits path across workers goroutines, each aggregating
// into a private table sized for the expected station cardinality, then
// merges every table associatively. It is the parallel extension to the
// single-threaded mmap driver: correct because the table's add/min/max
// aggregation commutes and associates across any partition of the input
// lines.
func RunMmapParallel(path string, workers int, tableSize int) (*aggtable.Table, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("driver: mmap %s: %w", path, err)
	}
	defer data.Unmap()

	merged, err := runMmapParallelRegions([]byte(data), workers, tableSize)
	return merged, err
}

func runMmapParallelRegions(data []byte, workers, tableSize int) (*aggtable.Table, error) {
	effective := trimToLastNewline(data)
	if len(effective) == 0 {
		return aggtable.New(tableSize), nil
	}

	regions := splitRegions(effective, workers)
	tables := make([]*aggtable.Table, len(regions))

	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func(i int, region []byte) {
			defer wg.Done()
			t := aggtable.New(tableSize)
			processRegion(region, t, 0)
			tables[i] = t
		}(i, region)
	}
	wg.Wait()

	merged := aggtable.New(tableSize)
	for _, t := range tables {
		Merge(merged, t)
	}

	return merged, nil
}

// Merge folds src's occupied entries into dst, combining sum/count/min/max
// for any station present in both.
func Merge(dst, src *aggtable.Table) {
	for _, ne := range src.Entries() {
		name := []byte(ne.Name)
		hash, prefix := aggtable.Hash(name)
		slot := dst.Lookup(hash, prefix)
		dst.MergeEntry(slot, hash, prefix, name, ne.Entry)
	}
}
