// Package checkout holds the tax logic of the checkout address and VAT step.
package checkout

import (
	"fmt"
	"strings"
)

// Address form field names.
const (
	FieldFirstName  = "firstName"
	FieldLastName   = "lastName"
	FieldCompany    = "company"
	FieldAddress1   = "address1"
	FieldPostalCode = "postalCode"
	FieldCity       = "city"
	FieldCountry    = "country"
	FieldPhone      = "phone"
	FieldVATID      = "vatId"
)

// AddressForm is the buyer's shipping address and optional VAT ID.
type AddressForm struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Company    string `json:"company"`
	Address1   string `json:"address1"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	VATID      string `json:"vatId"`
}

// FieldErrors maps a field name to its message.
type FieldErrors map[string]string

// Set returns a copy of the form with field replaced.
func (f AddressForm) Set(field, value string) (AddressForm, error) {
	switch field {
	case FieldFirstName:
		f.FirstName = value
	case FieldLastName:
		f.LastName = value
	case FieldCompany:
		f.Company = value
	case FieldAddress1:
		f.Address1 = value
	case FieldPostalCode:
		f.PostalCode = value
	case FieldCity:
		f.City = value
	case FieldCountry:
		f.Country = value
	case FieldPhone:
		f.Phone = value
	case FieldVATID:
		f.VATID = value
	default:
		return f, fmt.Errorf("checkout: unknown address field %q", field)
	}
	return f, nil
}

// Merge overlays the non-empty fields of other, as when the checkout prefills a known address.
func (f AddressForm) Merge(other AddressForm) AddressForm {
	pick := func(cur, next string) string {
		if next != "" {
			return next
		}
		return cur
	}
	f.FirstName = pick(f.FirstName, other.FirstName)
	f.LastName = pick(f.LastName, other.LastName)
	f.Company = pick(f.Company, other.Company)
	f.Address1 = pick(f.Address1, other.Address1)
	f.PostalCode = pick(f.PostalCode, other.PostalCode)
	f.City = pick(f.City, other.City)
	f.Country = pick(f.Country, other.Country)
	f.Phone = pick(f.Phone, other.Phone)
	f.VATID = pick(f.VATID, other.VATID)
	return f
}

// Validate reports missing required fields. An empty result means the form can be submitted.
func (f AddressForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if blank(f.Country) {
		errs[FieldCountry] = "Country is required"
	}
	if blank(f.Address1) {
		errs[FieldAddress1] = "Address is required"
	}
	if blank(f.PostalCode) {
		errs[FieldPostalCode] = "Postal code is required"
	}
	if blank(f.City) {
		errs[FieldCity] = "City is required"
	}
	return errs
}

// ShouldQuote reports whether enough is known to compute tax.
func (f AddressForm) ShouldQuote() bool {
	return !blank(f.Country)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
