package cli

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TrevorS/rangesearch"
)

// EnvPrefix prefixes environment overrides, e.g. RANGESEARCH_LEAF_SIZE.
const EnvPrefix = "RANGESEARCH"

// Options is the resolved command configuration. Values come from flags,
// then RANGESEARCH_* environment variables, then the config file, then
// flag defaults.
type Options struct {
	Reference    string
	Query        string
	Min          float64
	Max          float64
	Naive        bool
	Single       bool
	Tree         string
	LeafSize     int
	Metric       string
	MinkowskiP   float64
	NeighborsOut string
	DistancesOut string
	CountOnly    bool
	Verbose      bool
}

// Range returns the configured distance interval.
func (o *Options) Range() rangesearch.Range {
	return rangesearch.NewRange(o.Min, o.Max)
}

// NewFlagSet declares the command's flags.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rangesearch", pflag.ContinueOnError)
	fs.StringP("reference", "r", "", "CSV file of reference points, one point per line")
	fs.StringP("query", "q", "", "CSV file of query points; omit to search the reference set against itself")
	fs.Float64("min", 0, "lower bound of the distance range")
	fs.Float64("max", math.Inf(1), "upper bound of the distance range")
	fs.BoolP("naive", "N", false, "compare every pair instead of using trees")
	fs.BoolP("single", "S", false, "traverse the reference tree once per query point")
	fs.String("tree", string(rangesearch.TreeAuto), "tree kind: auto, kdtree, balltree")
	fs.Int("leaf-size", 20, "maximum points per tree leaf")
	fs.String("metric", "euclidean", "metric: euclidean, manhattan, chebyshev, minkowski")
	fs.Float64("minkowski-p", 2, "exponent for the minkowski metric")
	fs.StringP("neighbors-out", "n", "", "neighbors CSV output file (default stdout)")
	fs.StringP("distances-out", "d", "", "distances CSV output file")
	fs.Bool("count-only", false, "print pair counts instead of neighbor lists")
	fs.BoolP("verbose", "v", false, "log debug events")
	fs.StringP("config", "c", "", "YAML, TOML or JSON config file")
	return fs
}

// LoadOptions parses args and layers environment and config file values
// underneath them.
func LoadOptions(args []string) (*Options, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	opts := &Options{
		Reference:    v.GetString("reference"),
		Query:        v.GetString("query"),
		Min:          v.GetFloat64("min"),
		Max:          v.GetFloat64("max"),
		Naive:        v.GetBool("naive"),
		Single:       v.GetBool("single"),
		Tree:         v.GetString("tree"),
		LeafSize:     v.GetInt("leaf-size"),
		Metric:       v.GetString("metric"),
		MinkowskiP:   v.GetFloat64("minkowski-p"),
		NeighborsOut: v.GetString("neighbors-out"),
		DistancesOut: v.GetString("distances-out"),
		CountOnly:    v.GetBool("count-only"),
		Verbose:      v.GetBool("verbose"),
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) validate() error {
	if o.Reference == "" {
		return errors.New("a reference file is required (--reference)")
	}
	if o.LeafSize < 1 {
		return fmt.Errorf("leaf-size must be >= 1, got %d", o.LeafSize)
	}
	return o.Range().Validate()
}

// searchConfig translates options into a library Config.
func (o *Options) searchConfig() (rangesearch.Config, error) {
	metric, err := rangesearch.ParseMetric(o.Metric, o.MinkowskiP)
	if err != nil {
		return rangesearch.Config{}, err
	}
	cfg := rangesearch.DefaultConfig()
	cfg.Naive = o.Naive
	cfg.SingleMode = o.Single
	cfg.Metric = metric
	cfg.Tree = rangesearch.TreeKind(strings.ToLower(o.Tree))
	cfg.LeafSize = o.LeafSize
	return cfg, nil
}
