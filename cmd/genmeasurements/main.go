// Command genmeasurements synthesizes a measurements file in the shape
// stationstats consumes: one "<station>;<temperature>\n" line per sample,
// drawn from a normal distribution centered on each station's known mean.
package main

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

const stddev = 10.0

type station struct {
	name string
	mean float64
}

func (s station) sample() float64 {
	v := rand.NormFloat64()*stddev + s.mean
	if v < -99.9 {
		return -99.9
	}
	if v > 99.9 {
		return 99.9
	}
	return v
}

func main() {
	var (
		count      = pflag.Int64P("count", "n", 1_000_000, "number of measurement lines to generate")
		stationsIn = pflag.StringP("stations", "s", "", "path to a name;mean_temperature list, '#'-prefixed lines ignored")
		outPath    = pflag.StringP("output", "o", "", "output file path (defaults to stdout)")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: genmeasurements --stations <file> --count <n> [--output <file>]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *stationsIn == "" {
		pflag.Usage()
		os.Exit(2)
	}

	stations, err := loadStations(*stationsIn)
	if err != nil {
		logger.Error("failed to load station list", "path", *stationsIn, "err", err)
		os.Exit(1)
	}
	if len(stations) == 0 {
		logger.Error("station list is empty", "path", *stationsIn)
		os.Exit(1)
	}
	logger.Debug("loaded stations", "count", len(stations))

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("failed to create output file", "path", *outPath, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := int64(0); i < *count; i++ {
		s := stations[rand.IntN(len(stations))]
		temp := s.sample()
		w.WriteString(s.name)
		w.WriteByte(';')
		w.WriteString(strconv.FormatFloat(temp, 'f', 1, 64))
		w.WriteByte('\n')
	}

	logger.Debug("generated measurements", "lines", *count)
}

func loadStations(path string) ([]station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station list: %w", err)
	}

	var stations []station
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, meanStr, ok := strings.Cut(line, ";")
		if !ok {
			return nil, fmt.Errorf("malformed station line %q: missing ';'", line)
		}

		mean, err := strconv.ParseFloat(meanStr, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed station line %q: %w", line, err)
		}

		stations = append(stations, station{name: name, mean: mean})
	}

	return stations, nil
}
