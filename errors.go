package rangesearch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned for requests the orchestrator's
	// mode cannot serve, such as a query tree in naive or single-tree mode.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidRange is returned for NaN, negative, or inverted intervals.
	ErrInvalidRange = errors.New("invalid range")

	// ErrDimensionMismatch is returned when query and reference points have
	// different dimensionality. See DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyDataset is returned when a reference set has no points.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrIncompatibleTree is returned when two trees cannot be traversed
	// together, or when no query tree can be built to match a borrowed one.
	ErrIncompatibleTree = errors.New("incompatible tree")

	// ErrUnsupportedMetric is returned when a metric cannot drive a tree's bounds.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrClosed is returned by searches on a closed RangeSearch.
	ErrClosed = errors.New("range search is closed")
)

// DimensionMismatchError reports a query/reference dimensionality mismatch.
// It unwraps to ErrDimensionMismatch.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("rangesearch: dimension mismatch: reference has %d dimensions, query has %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
