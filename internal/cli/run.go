// Package cli implements the rangesearch command: CSV point files in,
// neighbor and distance CSV files out.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/TrevorS/rangesearch"
)

// NewLogger returns a console logger on w at info level, or debug when verbose.
func NewLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Run executes the command with args, writing results to stdout and logs to stderr.
func Run(args []string, stdout, stderr io.Writer) error {
	opts, err := LoadOptions(args)
	if err != nil {
		return err
	}
	logger := NewLogger(stderr, opts.Verbose)

	cfg, err := opts.searchConfig()
	if err != nil {
		return err
	}
	cfg.Logger = &logger

	reference, err := ReadMatrixFile(opts.Reference)
	if err != nil {
		return err
	}
	rs, err := rangesearch.New(reference, cfg)
	if err != nil {
		return err
	}
	defer rs.Close()

	var res *rangesearch.Result
	if opts.Query == "" {
		res, err = rs.SearchSelf(opts.Range())
	} else {
		var query *mat.Dense
		query, err = ReadMatrixFile(opts.Query)
		if err != nil {
			return err
		}
		res, err = rs.Search(query, opts.Range())
	}
	if err != nil {
		return err
	}
	res.Sort()

	logger.Info().
		Int("queries", res.Len()).
		Int("pairs", res.NumPairs()).
		Stringer("range", opts.Range()).
		Msg("range search finished")

	if opts.CountOnly {
		_, err := fmt.Fprintf(stdout, "queries=%d pairs=%d covered=%d\n",
			res.Len(), res.NumPairs(), res.Coverage().GetCardinality())
		return err
	}

	if err := writeTo(opts.NeighborsOut, stdout, func(w io.Writer) error {
		return WriteNeighbors(w, res)
	}); err != nil {
		return fmt.Errorf("write neighbors: %w", err)
	}
	if opts.DistancesOut != "" {
		if err := writeTo(opts.DistancesOut, stdout, func(w io.Writer) error {
			return WriteDistances(w, res)
		}); err != nil {
			return fmt.Errorf("write distances: %w", err)
		}
	}
	return nil
}

// writeTo runs write against path, or against fallback when path is empty.
func writeTo(path string, fallback io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(fallback)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
