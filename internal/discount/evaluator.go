package discount

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

// Evaluator runs the bulk discount rules against a configured table.
type Evaluator struct {
	Table  Table
	Policy Policy
	Logger *zerolog.Logger
}

// Run evaluates the input and returns the discount decision.
func (e Evaluator) Run(ctx context.Context, in Input) Output {
	lines := in.Cart.Lines
	total := TotalQuantity(lines)
	tier, ok := Select(total, e.Table, e.Policy)
	if !ok {
		e.logger(ctx).Info().
			Int("total_quantity", total).
			Str("policy", e.Policy.String()).
			Msg("No cart lines qualify for this discount.")
		observe("no_match")
		return Empty()
	}
	observe("applied")
	return Assemble(tier, ok, BuildTargets(lines))
}

func (e Evaluator) logger(ctx context.Context) *zerolog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zerolog.Ctx(ctx)
}

func observe(result string) {
	if obs.DiscountEvaluationsTotal != nil {
		obs.DiscountEvaluationsTotal.WithLabelValues(result).Inc()
	}
}

// Configure builds an evaluator from an optional JSON tiers file and a policy
// name. An empty path uses DefaultTable.
func Configure(tiersFile, policyName string) (Evaluator, error) {
	policy, err := ParsePolicy(policyName)
	if err != nil {
		return Evaluator{}, err
	}
	table := DefaultTable()
	if tiersFile != "" {
		f, err := os.Open(tiersFile)
		if err != nil {
			return Evaluator{}, fmt.Errorf("open tiers file: %w", err)
		}
		defer f.Close()
		if table, err = LoadTable(f); err != nil {
			return Evaluator{}, err
		}
	}
	return Evaluator{Table: table, Policy: policy}, nil
}
