// Package driver streams a measurements file through the scanner, parser,
// and aggregation table.
//
// Three entry points mirror the original core's binaries: RunReadBuffer
// reads through a fixed buffer with a residue carry for lines that
// straddle read boundaries (bin/008_branching.rs), RunMmap processes a
// memory-mapped file as three interleaved regions to expose memory-level
// parallelism on a single core (bin/010_mmap.rs), and RunMmapParallel
// fans the same region split across goroutines, each with a private
// table merged at the end.
package driver

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"

	"github.com/coldpath/stationstats/internal/aggtable"
	"github.com/coldpath/stationstats/internal/scanner"
	"github.com/coldpath/stationstats/internal/tempfmt"
)

// ReadBufferSize is the chunk size RunReadBuffer reads at a time.
const ReadBufferSize = 4 << 20

// maxResidue is the size at which a filled buffer holding no newline at all
// is rejected. RunReadBuffer only checks it when a read finds no newline
// in the whole buffer, and then returns an error rather than silently
// truncate the line; the tail after the last newline is carried over
// whatever its length.
const maxResidue = 4096

// processRegion consumes buf[cursor:] one line at a time using the
// 32-byte windowed scanner, aggregating every line into tbl. The end of
// buf ends its final line, so buf may omit the final '\n'. It returns the
// cursor after the last line: len(buf) when buf ends with '\n', len(buf)+1
// when its final line runs to the end of buf without one.
func processRegion(buf []byte, tbl *aggtable.Table, cursor int) int {
	n := len(buf)

	for cursor < n {
		end := cursor + scanner.WindowSize
		if end > n {
			end = n
		}
		window := buf[cursor:end]

		semicolons, newlines := scanner.FindDelimiters(window)
		if newlines == 0 {
			cursor = processLongLine(buf, tbl, cursor, n)
			continue
		}

		cursor += consumeWindow(window, tbl, semicolons, newlines)
	}

	return cursor
}

// consumeWindow aggregates every complete line found in window (as
// located by a prior FindDelimiters call) and returns how many bytes of
// window were consumed, i.e. the start of the next line or len(window) if
// the window ended exactly on a line boundary.
func consumeWindow(window []byte, tbl *aggtable.Table, semicolons, newlines uint32) int {
	lineStart := 0
	for newlines != 0 {
		semiPos := bits.TrailingZeros32(semicolons)
		nlPos := bits.TrailingZeros32(newlines)

		name := window[lineStart:semiPos]
		temp := window[semiPos+1 : nlPos]

		hash, prefix := aggtable.Hash(name)
		tbl.Prefetch(hash)
		parsed := tempfmt.ParseTemp(temp)
		slot := tbl.Lookup(hash, prefix)
		tbl.Update(slot, hash, prefix, name, parsed)

		semicolons &= semicolons - 1
		newlines &= newlines - 1
		lineStart = nlPos + 1
	}
	return lineStart
}

// processLongLine handles a line whose name or temperature field is wider
// than a single scan window, using the byte-at-a-time BytePosition search.
// buf[cursor:end] is expected to start with a well-formed line; if no
// newline follows the semicolon before end, end is taken as the end of the
// line. A missing semicolon means malformed input, which §7's error
// handling design treats as a programmer error rather than a reported one.
func processLongLine(buf []byte, tbl *aggtable.Table, cursor, end int) int {
	semiPos, ok := scanner.BytePosition(buf[cursor:end], ';')
	if !ok {
		panic(fmt.Sprintf("driver: malformed record, no ';' found in %q", buf[cursor:end]))
	}

	tempStart := cursor + semiPos + 1
	nlPos, ok := scanner.BytePosition(buf[tempStart:end], '\n')
	if !ok {
		nlPos = end - tempStart
	}

	name := buf[cursor : cursor+semiPos]
	temp := buf[tempStart : tempStart+nlPos]

	hash, prefix := aggtable.Hash(name)
	parsed := tempfmt.ParseTemp(temp)
	slot := tbl.Lookup(hash, prefix)
	tbl.Update(slot, hash, prefix, name, parsed)

	return tempStart + nlPos + 1
}

// RunReadBuffer streams r through a fixed-size buffer, carrying any
// trailing incomplete line over to the next read. Any bytes still
// incomplete when r is exhausted are a trailing partial record and are
// discarded rather than processed, matching the original core's behavior
// of never touching the remainder after its last full read.
func RunReadBuffer(r io.Reader, tbl *aggtable.Table) error {
	br := bufio.NewReaderSize(r, ReadBufferSize)

	buf := make([]byte, ReadBufferSize)
	var residue []byte

	for {
		residueLen := copy(buf, residue)

		read, err := io.ReadFull(br, buf[residueLen:])
		filled := residueLen + read
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fmt.Errorf("driver: read measurements: %w", err)
		}
		if filled == 0 {
			return nil
		}

		lastNewline := lastIndexByte(buf[:filled], '\n')
		if lastNewline < 0 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			if filled >= maxResidue {
				return fmt.Errorf("driver: line exceeds %d bytes with no newline", maxResidue)
			}
			residue = append(residue[:0], buf[:filled]...)
			continue
		}

		effective := buf[:lastNewline]
		processRegion(effective, tbl, 0)

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}

		rest := buf[lastNewline+1 : filled]
		residue = append(residue[:0], rest...)
	}
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}
