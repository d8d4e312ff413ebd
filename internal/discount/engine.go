package discount

import "math"

// TotalQuantity sums quantities across every line regardless of merchandise
// kind. The sum saturates at math.MaxInt instead of wrapping.
func TotalQuantity(lines []CartLine) int {
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if line.Quantity > math.MaxInt-total {
			return math.MaxInt
		}
		total += line.Quantity
	}
	return total
}

// Select returns the tier chosen for the aggregate quantity under the policy.
func Select(total int, table Table, policy Policy) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, tier := range table {
		if total < tier.MinQuantity {
			continue
		}
		if policy == PolicyFirstMatch {
			return tier, true
		}
		if !found || tier.MinQuantity > best.MinQuantity {
			best = tier
			found = true
		}
	}
	return best, found
}

// BuildTargets projects product variant lines into discount targets, keeping input order.
func BuildTargets(lines []CartLine) []Target {
	targets := make([]Target, 0, len(lines))
	for _, line := range lines {
		if line.Merchandise.TypeName != MerchandiseProductVariant {
			continue
		}
		targets = append(targets, Target{
			ProductVariant: &ProductVariantTarget{ID: line.Merchandise.ID},
		})
	}
	return targets
}

// Assemble packages the selected tier and targets into an output decision.
func Assemble(tier Tier, ok bool, targets []Target) Output {
	if !ok {
		return Empty()
	}
	if targets == nil {
		targets = []Target{}
	}
	return Output{
		Discounts: []Discount{{
			Targets: targets,
			Value:   Value{Percentage: &Percentage{Value: tier.Percentage}},
			Message: tier.Message,
		}},
		DiscountApplicationStrategy: StrategyFirst,
	}
}
