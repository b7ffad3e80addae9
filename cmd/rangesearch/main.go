// Command rangesearch reports, for every query point, the reference points
// whose distance falls inside [--min, --max].
//
//	rangesearch --reference ref.csv --query q.csv --max 2.5 -n neighbors.csv -d distances.csv
//
// Without --query the reference set is searched against itself.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/TrevorS/rangesearch/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "rangesearch: %v\n", err)
		os.Exit(1)
	}
}
