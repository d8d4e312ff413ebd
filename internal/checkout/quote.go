package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

// ErrCountryRequired is returned when a quote is requested without a country.
var ErrCountryRequired = errors.New("checkout: country is required")

// DefaultTaxRate applies when a country has no usable stored rate.
var DefaultTaxRate = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// Rate sources reported on a quote.
const (
	SourceVATExempt = "vat_exempt"
	SourceCountry   = "country"
	SourceDefault   = "default"
)

// VAT banner messages.
const (
	MessageVATValidated = "VAT number validated successfully"
	MessageVATInvalid   = "Invalid VAT number"
)

// RateLookup resolves a country's stored rate.
type RateLookup interface {
	Lookup(ctx context.Context, countryCode string) (decimal.Decimal, bool, error)
}

// VATValidator validates a buyer's VAT ID.
type VATValidator interface {
	Validate(ctx context.Context, countryCode, vatNumber string) vat.Result
}

// Line is a cart line with its total amount.
type Line struct {
	ID           string          `json:"id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode,omitempty" validate:"omitempty,len=3"`
}

// QuoteRequest carries what the checkout knows when tax is computed.
type QuoteRequest struct {
	Country string
	VATID   string
	Lines   []Line
}

// Quote is the computed tax breakdown. Amounts are rounded to two places.
type Quote struct {
	Subtotal   decimal.Decimal
	TaxRate    decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	Currency   string
	RateSource string
	VATExempt  bool
	VATMessage string
}

// Calculator computes checkout tax quotes.
type Calculator struct {
	Rates       RateLookup
	VAT         VATValidator
	DefaultRate decimal.Decimal
}

// Quote computes tax for req. A validated VAT ID zeroes the rate; otherwise the
// country's stored rate applies, and a zero result falls back to DefaultRate.
func (c Calculator) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		return Quote{}, ErrCountryRequired
	}
	q := Quote{Subtotal: Subtotal(req.Lines), Currency: currency(req.Lines)}

	if vatID := strings.TrimSpace(req.VATID); vatID != "" && c.VAT != nil {
		res := c.VAT.Validate(ctx, country, vatID)
		if res.Success {
			q.VATExempt = true
			q.VATMessage = MessageVATValidated
		} else {
			q.VATMessage = res.Message
			if q.VATMessage == "" {
				q.VATMessage = MessageVATInvalid
			}
		}
	}

	switch {
	case q.VATExempt:
		q.TaxRate = decimal.Zero
		q.RateSource = SourceVATExempt
	default:
		rate := decimal.Zero
		if c.Rates != nil {
			found, ok, err := c.Rates.Lookup(ctx, country)
			if err != nil {
				return Quote{}, err
			}
			if ok {
				rate = found
			}
		}
		q.TaxRate, q.RateSource = rate, SourceCountry
		if rate.IsZero() {
			q.TaxRate, q.RateSource = c.defaultRate(), SourceDefault
		}
	}

	q.TaxAmount = q.Subtotal.Mul(q.TaxRate).Div(hundred).Round(2)
	q.Total = q.Subtotal.Add(q.TaxAmount).Round(2)
	q.Subtotal = q.Subtotal.Round(2)
	return q, nil
}

func (c Calculator) defaultRate() decimal.Decimal {
	if c.DefaultRate.IsZero() {
		return DefaultTaxRate
	}
	return c.DefaultRate
}

// Subtotal sums line amounts.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func currency(lines []Line) string {
	if len(lines) > 0 && lines[0].CurrencyCode != "" {
		return lines[0].CurrencyCode
	}
	return "USD"
}

// Attribute is a checkout or cart line attribute.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LineChange is an updateCartLine change for the checkout.
type LineChange struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
}

// LineUpdates annotates every line with the applied rate and its taxed price.
func LineUpdates(lines []Line, rate decimal.Decimal) []LineChange {
	factor := decimal.NewFromInt(1).Add(rate.Div(hundred))
	out := make([]LineChange, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineChange{
			Type: "updateCartLine",
			ID:   l.ID,
			Attributes: []Attribute{
				{Key: "taxRate", Value: rate.String()},
				{Key: "priceWithTax", Value: l.Amount.Mul(factor).StringFixed(2)},
			},
		})
	}
	return out
}

// CheckoutAttributes returns the checkout level attributes implied by q.
func CheckoutAttributes(q Quote) []Attribute {
	if !q.VATExempt {
		return []Attribute{}
	}
	return []Attribute{{Key: "vatExempt", Value: "true"}}
}
