package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/checkout"
	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

type stubRates map[string]decimal.Decimal

func (s stubRates) Lookup(_ context.Context, code string) (decimal.Decimal, bool, error) {
	rate, ok := s[code]
	return rate, ok, nil
}

type failingRates struct{}

func (failingRates) Lookup(context.Context, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, errors.New("store down")
}

type stubVAT struct {
	result  vat.Result
	country string
}

func (s *stubVAT) Validate(_ context.Context, country, _ string) vat.Result {
	s.country = country
	return s.result
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func lines() []checkout.Line {
	return []checkout.Line{
		{ID: "gid://shopify/CartLine/1", Amount: d("10.00"), CurrencyCode: "EUR"},
		{ID: "gid://shopify/CartLine/2", Amount: d("5.55"), CurrencyCode: "EUR"},
	}
}

func TestAddressFormValidate(t *testing.T) {
	var form checkout.AddressForm
	errs := form.Validate()
	require.Equal(t, checkout.FieldErrors{
		"country":    "Country is required",
		"address1":   "Address is required",
		"postalCode": "Postal code is required",
		"city":       "City is required",
	}, errs)

	var err error
	for field, value := range map[string]string{"country": "DE", "address1": "Hauptstr. 1", "postalCode": "10115", "city": "Berlin"} {
		form, err = form.Set(field, value)
		require.NoError(t, err)
	}
	require.Empty(t, form.Validate())
	require.True(t, form.ShouldQuote())

	_, err = form.Set("zip", "1")
	require.Error(t, err)
}

func TestAddressFormMergeKeepsExisting(t *testing.T) {
	form := checkout.AddressForm{VATID: "DE123", City: "Old"}
	merged := form.Merge(checkout.AddressForm{City: "Berlin", Country: "DE"})
	require.Equal(t, "Berlin", merged.City)
	require.Equal(t, "DE", merged.Country)
	require.Equal(t, "DE123", merged.VATID)
}

func TestQuoteUsesCountryRate(t *testing.T) {
	calc := checkout.Calculator{Rates: stubRates{"DE": d("19")}}
	q, err := calc.Quote(context.Background(), checkout.QuoteRequest{Country: "de", Lines: lines()})
	require.NoError(t, err)
	require.Equal(t, "15.55", q.Subtotal.StringFixed(2))
	require.True(t, q.TaxRate.Equal(d("19")))
	require.Equal(t, "2.95", q.TaxAmount.StringFixed(2))
	require.Equal(t, "18.50", q.Total.StringFixed(2))
	require.Equal(t, checkout.SourceCountry, q.RateSource)
	require.Equal(t, "EUR", q.Currency)
}

func TestQuoteFallsBackToDefaultRate(t *testing.T) {
	calc := checkout.Calculator{Rates: stubRates{"US": d("0")}}
	q, err := calc.Quote(context.Background(), checkout.QuoteRequest{Country: "IT", Lines: lines()})
	require.NoError(t, err)
	require.True(t, q.TaxRate.Equal(d("5")))
	require.Equal(t, checkout.SourceDefault, q.RateSource)

	q, err = calc.Quote(context.Background(), checkout.QuoteRequest{Country: "US", Lines: lines()})
	require.NoError(t, err)
	require.True(t, q.TaxRate.Equal(d("5")), "a stored zero also falls back")

	calc.DefaultRate = d("7.7")
	q, err = calc.Quote(context.Background(), checkout.QuoteRequest{Country: "CH"})
	require.NoError(t, err)
	require.True(t, q.TaxRate.Equal(d("7.7")))
	require.True(t, q.Total.IsZero())
	require.Equal(t, "USD", q.Currency)
}

func TestQuoteVATExemption(t *testing.T) {
	v := &stubVAT{result: vat.Result{Success: true, Status: vat.StatusValid}}
	calc := checkout.Calculator{Rates: stubRates{"AT": d("20")}, VAT: v}
	q, err := calc.Quote(context.Background(), checkout.QuoteRequest{Country: "at", VATID: "ATU12345678", Lines: lines()})
	require.NoError(t, err)
	require.True(t, q.VATExempt)
	require.True(t, q.TaxRate.IsZero())
	require.True(t, q.TaxAmount.IsZero())
	require.True(t, q.Total.Equal(q.Subtotal))
	require.Equal(t, "AT", v.country)
	require.Equal(t, checkout.MessageVATValidated, q.VATMessage)
	require.Equal(t, []checkout.Attribute{{Key: "vatExempt", Value: "true"}}, checkout.CheckoutAttributes(q))
}

func TestQuoteInvalidVATKeepsCountryRate(t *testing.T) {
	v := &stubVAT{result: vat.Result{Success: false, Message: vat.MessageInvalid, Status: vat.StatusInvalid}}
	calc := checkout.Calculator{Rates: stubRates{"AT": d("20")}, VAT: v}
	q, err := calc.Quote(context.Background(), checkout.QuoteRequest{Country: "AT", VATID: "ATU0", Lines: lines()})
	require.NoError(t, err)
	require.False(t, q.VATExempt)
	require.True(t, q.TaxRate.Equal(d("20")))
	require.Equal(t, vat.MessageInvalid, q.VATMessage)
	require.Empty(t, checkout.CheckoutAttributes(q))
}

func TestQuoteErrors(t *testing.T) {
	_, err := checkout.Calculator{}.Quote(context.Background(), checkout.QuoteRequest{})
	require.ErrorIs(t, err, checkout.ErrCountryRequired)

	_, err = checkout.Calculator{Rates: failingRates{}}.Quote(context.Background(), checkout.QuoteRequest{Country: "DE"})
	require.EqualError(t, err, "store down")
}

func TestLineUpdates(t *testing.T) {
	updates := checkout.LineUpdates(lines(), d("19"))
	require.Len(t, updates, 2)
	require.Equal(t, "updateCartLine", updates[0].Type)
	require.Equal(t, "gid://shopify/CartLine/1", updates[0].ID)
	require.Equal(t, []checkout.Attribute{{Key: "taxRate", Value: "19"}, {Key: "priceWithTax", Value: "11.90"}}, updates[0].Attributes)
	require.Equal(t, "6.60", updates[1].Attributes[1].Value)
}

func TestTaxQuoteHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api", checkout.NewHandler(checkout.Calculator{Rates: stubRates{"DE": d("19")}}).Routes)

	body := `{"address":{"country":"DE","city":"Berlin"},"lines":[{"id":"l1","amount":"100","currencyCode":"EUR"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/tax-quote", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out struct {
		Quote struct {
			Subtotal  string `json:"subtotal"`
			TaxAmount string `json:"taxAmount"`
			Total     string `json:"total"`
		} `json:"quote"`
		LineUpdates []checkout.LineChange `json:"lineUpdates"`
		FormErrors  map[string]string     `json:"formErrors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "100.00", out.Quote.Subtotal)
	require.Equal(t, "19.00", out.Quote.TaxAmount)
	require.Equal(t, "119.00", out.Quote.Total)
	require.Len(t, out.LineUpdates, 1)
	require.Contains(t, out.FormErrors, "address1")

	req = httptest.NewRequest(http.MethodPost, "/api/checkout/tax-quote", strings.NewReader(`{"address":{},"lines":[]}`))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Country is required")
}

func TestTaxQuoteHandlerValidatesLines(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api", checkout.NewHandler(checkout.Calculator{Rates: stubRates{"DE": d("19")}}).Routes)

	cases := map[string]struct {
		line  string
		field string
		msg   string
	}{
		"missing id":        {line: `{"amount":"10"}`, field: "id", msg: "is required"},
		"bad currency code": {line: `{"id":"l1","amount":"10","currencyCode":"EURO"}`, field: "currencyCode", msg: "must be 3 characters"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := `{"address":{"country":"DE"},"lines":[` + tc.line + `]}`
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/checkout/tax-quote", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var env struct {
				Error struct {
					Code    string            `json:"code"`
					Details map[string]string `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
			require.Equal(t, "VALIDATION", env.Error.Code)
			require.Equal(t, tc.msg, env.Error.Details[tc.field])
		})
	}
}
