// Package admin models the embedded admin pages as explicit state transitions.
package admin

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/felipedev418/tax-rate-adjustment/internal/countries"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
)

// TaxRateWriter persists tax-rate edits. *taxrate.Service satisfies it.
type TaxRateWriter interface {
	Create(ctx context.Context, in taxrate.Input) (taxrate.Record, error)
	Update(ctx context.Context, id string, in taxrate.Input) (taxrate.Record, error)
}

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

// TaxRateForm is the add/edit tax rate modal.
type TaxRateForm struct {
	Active      bool
	EditingID   string
	CountryCode string
	TaxRate     string
	Error       string
}

// OpenTaxRateForm starts a new record with the country defaulted to the first option.
func OpenTaxRateForm(options []countries.Option) TaxRateForm {
	f := TaxRateForm{Active: true}
	if len(options) > 0 {
		f.CountryCode = options[0].Value
	}
	return f
}

// EditTaxRate opens the form on an existing record.
func EditTaxRate(rec taxrate.Record) TaxRateForm {
	return TaxRateForm{Active: true, EditingID: rec.ID, CountryCode: rec.CountryCode, TaxRate: rec.TaxRate}
}

// Editing reports whether the form updates an existing record.
func (f TaxRateForm) Editing() bool { return f.EditingID != "" }

// Title is the modal heading.
func (f TaxRateForm) Title() string {
	if f.Editing() {
		return "Edit Tax Rate"
	}
	return "Add Tax Rate"
}

// PrimaryAction is the submit button label.
func (f TaxRateForm) PrimaryAction() string {
	if f.Editing() {
		return "Update"
	}
	return "Add"
}

// SetCountry returns the form with a new country.
func (f TaxRateForm) SetCountry(code string) TaxRateForm {
	f.CountryCode = code
	f.Error = ""
	return f
}

// SetRate returns the form with a new rate text.
func (f TaxRateForm) SetRate(rate string) TaxRateForm {
	f.TaxRate = rate
	f.Error = ""
	return f
}

// Close dismisses the modal and forgets the edited record.
func (f TaxRateForm) Close() TaxRateForm {
	return TaxRateForm{}
}

// Validate checks the current values.
func (f TaxRateForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if !countries.Valid(f.CountryCode) {
		errs["countryCode"] = "Select a country"
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(f.TaxRate))
	switch {
	case strings.TrimSpace(f.TaxRate) == "":
		errs["taxRate"] = "Tax rate is required"
	case err != nil:
		errs["taxRate"] = "Tax rate must be a number"
	case rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)):
		errs["taxRate"] = "Tax rate must be between 0 and 100"
	}
	return errs
}

// Submit creates or updates depending on the mode. On success the form closes;
// on failure it stays open carrying the error.
func (f TaxRateForm) Submit(ctx context.Context, store TaxRateWriter) (TaxRateForm, taxrate.Record, error) {
	if errs := f.Validate(); len(errs) > 0 {
		f.Error = firstError(errs)
		return f, taxrate.Record{}, nil
	}
	rate := decimal.RequireFromString(strings.TrimSpace(f.TaxRate))
	in := taxrate.Input{CountryCode: countries.Normalize(f.CountryCode), TaxRate: &rate}
	var (
		rec taxrate.Record
		err error
	)
	if f.Editing() {
		rec, err = store.Update(ctx, f.EditingID, in)
	} else {
		rec, err = store.Create(ctx, in)
	}
	if err != nil {
		f.Error = err.Error()
		return f, taxrate.Record{}, err
	}
	return f.Close(), rec, nil
}

// Row is one line of the tax rate table.
type Row struct {
	ID          string `json:"id"`
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	TaxRate     string `json:"taxRate"`
}

// Rows renders records for the table, resolving country names.
func Rows(records []taxrate.Record) []Row {
	out := make([]Row, 0, len(records))
	for _, rec := range records {
		name, _ := countries.Name(rec.CountryCode)
		out = append(out, Row{ID: rec.ID, CountryCode: rec.CountryCode, CountryName: name, TaxRate: rec.TaxRate + "%"})
	}
	return out
}

// CountryOptions lists the country picker options.
func CountryOptions() []countries.Option {
	return countries.Options()
}

func firstError(errs FieldErrors) string {
	for _, key := range []string{"countryCode", "taxRate"} {
		if msg, ok := errs[key]; ok {
			return msg
		}
	}
	return ""
}
