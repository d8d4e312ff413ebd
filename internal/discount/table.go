package discount

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrDuplicateThreshold is returned when two tiers share a minimum quantity.
	ErrDuplicateThreshold = errors.New("discount: duplicate tier minimum quantity")
	// ErrInvalidTier is returned for tiers with out of range values.
	ErrInvalidTier = errors.New("discount: invalid tier")
	// ErrUnknownPolicy is returned when a policy name cannot be parsed.
	ErrUnknownPolicy = errors.New("discount: unknown selection policy")
)

// Tier is one row of the bulk threshold table.
type Tier struct {
	MinQuantity int     `json:"quantity"`
	Percentage  float64 `json:"discount"`
	Message     string  `json:"message"`
}

// Table is an ordered list of tiers. Order matters for PolicyFirstMatch.
type Table []Tier

// DefaultTable returns the stock bulk discount tiers.
func DefaultTable() Table {
	return Table{
		{MinQuantity: 10, Percentage: 20, Message: "20% off 10 or more"},
		{MinQuantity: 40, Percentage: 30, Message: "30% off 40 or more"},
	}
}

// Validate checks tier ranges and minimum quantity uniqueness.
func (t Table) Validate() error {
	seen := make(map[int]struct{}, len(t))
	for i, tier := range t {
		if tier.MinQuantity < 0 {
			return fmt.Errorf("%w: tier %d has negative minimum quantity", ErrInvalidTier, i)
		}
		if tier.Percentage < 0 || tier.Percentage > 100 {
			return fmt.Errorf("%w: tier %d percentage %v outside 0-100", ErrInvalidTier, i, tier.Percentage)
		}
		if _, dup := seen[tier.MinQuantity]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateThreshold, tier.MinQuantity)
		}
		seen[tier.MinQuantity] = struct{}{}
	}
	return nil
}

// LoadTable decodes a JSON tier list and validates it.
func LoadTable(r io.Reader) (Table, error) {
	var table Table
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Policy selects which qualifying tier wins.
type Policy int

const (
	// PolicyFirstMatch picks the first qualifying tier in table order.
	// With an ascending table this is the smallest qualifying discount.
	PolicyFirstMatch Policy = iota
	// PolicyHighestThreshold picks the qualifying tier with the largest minimum quantity.
	PolicyHighestThreshold
)

func (p Policy) String() string {
	switch p {
	case PolicyFirstMatch:
		return "first"
	case PolicyHighestThreshold:
		return "highest"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration value to a Policy. Empty means first match.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "first", "first_match", "first-match":
		return PolicyFirstMatch, nil
	case "highest", "highest_threshold", "highest-threshold":
		return PolicyHighestThreshold, nil
	default:
		return PolicyFirstMatch, fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}
