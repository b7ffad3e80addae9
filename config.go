package rangesearch

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Config controls how a RangeSearch indexes and traverses its reference set.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Naive disables trees entirely: every query is compared against every
	// reference point. Naive overrides SingleMode. Default: false.
	Naive bool

	// SingleMode indexes only the reference set and traverses the reference
	// tree once per query point. When false (and not Naive), a query tree is
	// built per search and the two trees are traversed together.
	// Default: false.
	SingleMode bool

	// Metric is the distance function. Built-in: EuclideanMetric,
	// ManhattanMetric, ChebyshevMetric, MinkowskiMetric. Use DistanceFunc to
	// wrap a custom true metric (ball tree or naive only).
	// Default: EuclideanMetric.
	Metric Metric

	// Tree selects the spatial index. "auto" picks the KD-tree for Lp metrics
	// up to 60 dimensions and the ball tree otherwise. Default: "auto".
	Tree TreeKind

	// LeafSize is the maximum number of points in a tree leaf. Default: 20.
	LeafSize int

	// Logger receives debug events for tree builds and searches.
	// Default: a disabled logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Metric:   EuclideanMetric{},
		Tree:     TreeAuto,
		LeafSize: 20,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.Tree == "" {
		cfg.Tree = TreeAuto
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = 20
	}
	if cfg.Logger == nil {
		l := zerolog.Nop()
		cfg.Logger = &l
	}
	if cfg.Naive {
		cfg.SingleMode = false
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if cfg.LeafSize < 1 {
		return fmt.Errorf("rangesearch: LeafSize must be >= 1, got %d: %w", cfg.LeafSize, ErrInvalidConfiguration)
	}
	if mk, ok := cfg.Metric.(MinkowskiMetric); ok && mk.P < 1 {
		return fmt.Errorf("rangesearch: MinkowskiMetric P must be >= 1, got %g: %w", mk.P, ErrUnsupportedMetric)
	}
	switch cfg.Tree {
	case TreeAuto, TreeKD, TreeBall:
		// valid
	default:
		return fmt.Errorf("rangesearch: invalid Tree %q: %w", cfg.Tree, ErrInvalidConfiguration)
	}
	return nil
}
