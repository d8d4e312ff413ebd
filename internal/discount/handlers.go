package discount

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

// Handler serves discount previews for the admin page.
type Handler struct {
	evaluator Evaluator
}

// NewHandler wraps an evaluator.
func NewHandler(e Evaluator) *Handler {
	return &Handler{evaluator: e}
}

// Routes mounts the preview endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/discounts/preview", h.Preview)
	r.Get("/discounts/tiers", h.Tiers)
}

// Preview handles POST /api/discounts/preview with a function input body.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, h.evaluator.Run(r.Context(), in))
}

// Tiers handles GET /api/discounts/tiers.
func (h *Handler) Tiers(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"policy": h.evaluator.Policy.String(),
		"tiers":  h.evaluator.Table,
	})
}
