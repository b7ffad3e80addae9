package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/TrevorS/rangesearch"
)

// ReadMatrix parses CSV rows of numbers into a matrix, one point per row.
// Lines starting with '#' are skipped. Every row must have the same width.
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.New("parse csv: no points")
	}

	dims := len(records[0])
	data := make([]float64, 0, len(records)*dims)
	for i, rec := range records {
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("parse csv: row %d column %d: %w", i+1, j+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(records), dims, data), nil
}

// ReadMatrixFile reads a CSV point file.
func ReadMatrixFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteNeighbors writes one CSV line per query listing its neighbor indices.
// A query with no neighbors produces an empty line.
func WriteNeighbors(w io.Writer, res *rangesearch.Result) error {
	cw := csv.NewWriter(w)
	for _, ns := range res.Neighbors {
		rec := make([]string, len(ns))
		for k, n := range ns {
			rec[k] = strconv.Itoa(n)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDistances writes one CSV line per query listing its neighbor
// distances, aligned with WriteNeighbors.
func WriteDistances(w io.Writer, res *rangesearch.Result) error {
	cw := csv.NewWriter(w)
	for _, ds := range res.Distances {
		rec := make([]string, len(ds))
		for k, d := range ds {
			rec[k] = strconv.FormatFloat(d, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
