package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

// QuoteInput is the POST /api/checkout/tax-quote payload.
type QuoteInput struct {
	Address AddressForm `json:"address"`
	Lines   []Line      `json:"lines" validate:"dive"`
}

type quoteBody struct {
	Subtotal   string `json:"subtotal"`
	TaxRate    string `json:"taxRate"`
	TaxAmount  string `json:"taxAmount"`
	Total      string `json:"total"`
	Currency   string `json:"currencyCode"`
	RateSource string `json:"rateSource"`
	VATExempt  bool   `json:"vatExempt"`
}

// Handler exposes the checkout tax quote endpoint.
type Handler struct {
	calc Calculator
}

// NewHandler constructs a Handler.
func NewHandler(calc Calculator) *Handler {
	return &Handler{calc: calc}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout/tax-quote", h.TaxQuote)
}

// TaxQuote handles POST /api/checkout/tax-quote.
func (h *Handler) TaxQuote(w http.ResponseWriter, r *http.Request) {
	var in QuoteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	formErrors := in.Address.Validate()
	if !in.Address.ShouldQuote() {
		common.WriteError(w, common.Validation("validation failed", ErrCountryRequired).WithDetails(formErrors))
		return
	}
	q, err := h.calc.Quote(r.Context(), QuoteRequest{Country: in.Address.Country, VATID: in.Address.VATID, Lines: in.Lines})
	if err != nil {
		if errors.Is(err, ErrCountryRequired) {
			common.WriteError(w, common.BadRequest(err.Error(), err))
			return
		}
		common.WriteError(w, common.Upstream(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"quote": quoteBody{
			Subtotal:   q.Subtotal.StringFixed(2),
			TaxRate:    q.TaxRate.String(),
			TaxAmount:  q.TaxAmount.StringFixed(2),
			Total:      q.Total.StringFixed(2),
			Currency:   q.Currency,
			RateSource: q.RateSource,
			VATExempt:  q.VATExempt,
		},
		"lineUpdates":       LineUpdates(in.Lines, q.TaxRate),
		"attributes":        CheckoutAttributes(q),
		"validationMessage": q.VATMessage,
		"formErrors":        formErrors,
	})
}
