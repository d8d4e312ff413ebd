// Package taxrate manages per-country tax rates stored as market_tax_rate metaobjects.
package taxrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/felipedev418/tax-rate-adjustment/internal/countries"
	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
)

// Metaobject type and field keys.
const (
	MetaobjectType      = "market_tax_rate"
	ProductRateType     = "product_tax_rate"
	FieldCountryCode    = "country_code"
	FieldTaxRate        = "tax_rate"
	FieldProductID      = "product_id"
	TaxCalculatorHandle = "tax-calculator"
)

var (
	// ErrMalformedRecord is returned when a stored record lacks a required field.
	ErrMalformedRecord = errors.New("taxrate: malformed record")
	// ErrRateOutOfRange is returned for rates outside [0, 100].
	ErrRateOutOfRange = errors.New("taxrate: rate must be between 0 and 100")
	// ErrUnknownCountry is returned for codes that are not assigned countries.
	ErrUnknownCountry = errors.New("taxrate: unknown country code")
)

// Record is one country's tax rate. TaxRate keeps the stored string form.
type Record struct {
	ID          string `json:"id"`
	CountryCode string `json:"countryCode"`
	TaxRate     string `json:"taxRate"`
}

// Rate parses the stored rate.
func (r Record) Rate() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(r.TaxRate))
}

// Input is the create and update payload.
type Input struct {
	CountryCode string           `json:"countryCode" validate:"required,len=2,iso3166_1_alpha2"`
	TaxRate     *decimal.Decimal `json:"taxRate" validate:"required"`
}

// Normalize upper-cases the country code.
func (in *Input) Normalize() {
	in.CountryCode = countries.Normalize(in.CountryCode)
}

// Check applies the rules struct tags cannot express.
func (in Input) Check() error {
	if !countries.Valid(in.CountryCode) {
		return fmt.Errorf("%w: %q", ErrUnknownCountry, in.CountryCode)
	}
	if in.TaxRate == nil {
		return ErrRateOutOfRange
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: %s", ErrRateOutOfRange, in.TaxRate.String())
	}
	return nil
}

func (in Input) fields() []metaobject.Field {
	return []metaobject.Field{
		{Key: FieldCountryCode, Value: in.CountryCode},
		{Key: FieldTaxRate, Value: in.TaxRate.String()},
	}
}

// FromMetaobject converts a stored metaobject, requiring both fields.
func FromMetaobject(m metaobject.Metaobject) (Record, error) {
	code, ok := m.Field(FieldCountryCode)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s has no %s field", ErrMalformedRecord, m.ID, FieldCountryCode)
	}
	rate, ok := m.Field(FieldTaxRate)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s has no %s field", ErrMalformedRecord, m.ID, FieldTaxRate)
	}
	return Record{ID: m.ID, CountryCode: code, TaxRate: rate}, nil
}
