package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
)

// RateLister lists stored tax rates. *taxrate.Service satisfies it.
type RateLister interface {
	List(ctx context.Context) ([]taxrate.Record, error)
}

// Handler serves the read models behind the admin pages.
type Handler struct {
	rates RateLister
}

// NewHandler constructs a Handler.
func NewHandler(rates RateLister) *Handler {
	return &Handler{rates: rates}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/countries", h.Countries)
	r.Get("/admin/tax-rate-table", h.Table)
}

// Countries handles GET /api/countries.
func (h *Handler) Countries(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, CountryOptions())
}

// Table handles GET /api/admin/tax-rate-table.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	records, err := h.rates.List(r.Context())
	if err != nil {
		common.WriteError(w, common.Upstream(err))
		return
	}
	common.JSON(w, http.StatusOK, Rows(records))
}
