// Command discount runs the bulk discount function: a cart input JSON on
// stdin becomes a discount decision JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/felipedev418/tax-rate-adjustment/internal/discount"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discount", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		tiersFile = fs.String("tiers", "", "JSON tier table overriding the default thresholds")
		policy    = fs.String("policy", "first", "tier selection policy: first or highest")
		logLevel  = fs.String("log-level", "info", "log level written to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := obs.NewLoggerTo(stderr, "json", *logLevel)

	evaluator, err := discount.Configure(*tiersFile, *policy)
	if err != nil {
		fmt.Fprintf(stderr, "discount: %v\n", err)
		return 2
	}
	evaluator.Logger = &logger

	var in discount.Input
	if err := json.NewDecoder(stdin).Decode(&in); err != nil {
		logger.Error().Err(err).Msg("decode function input")
		return 1
	}
	out := evaluator.Run(context.Background(), in)
	if err := json.NewEncoder(stdout).Encode(out); err != nil {
		logger.Error().Err(err).Msg("encode function output")
		return 1
	}
	return 0
}
