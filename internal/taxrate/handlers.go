package taxrate

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
)

// Handler exposes the tax-rate admin endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/tax-rates", h.List)
	r.Post("/tax-rates", h.Create)
	r.Get("/tax-rates/{key}", h.Lookup)
	r.Put("/tax-rates/{key}", h.Update)
	r.Delete("/tax-rates/{key}", h.Delete)
	r.Post("/sync-tax-rates", h.Sync)
	r.Post("/setup-metaobjects", h.Setup)
}

// List handles GET /api/tax-rates.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	records, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, records)
}

// Create handles POST /api/tax-rates.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	rec, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

// Update handles PUT /api/tax-rates/{id}. The id arrives URL-encoded.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	rec, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/tax-rates/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Lookup handles GET /api/tax-rates/{countryCode}.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	code, err := pathID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !isCountryKey(code) {
		common.WriteError(w, common.BadRequest("expected a 2-letter country code", nil))
		return
	}
	rate, found, err := h.service.Lookup(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"countryCode": strings.ToUpper(code),
		"taxRate":     rate,
		"found":       found,
	})
}

// Sync handles POST /api/sync-tax-rates.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.service.Sync(r.Context())
	if err != nil {
		common.JSON(w, statusFor(err), map[string]any{"success": false, "error": err.Error()})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"taxRates":      res.TaxRates,
		"calculationId": res.CalculationID,
	})
}

// Setup handles POST /api/setup-metaobjects.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	res, err := h.service.SetupDefinitions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "tax rate service not configured", nil)
		return false
	}
	return true
}

// pathID decodes the {key} segment; chi matches on the raw path so encoded GIDs arrive escaped.
func pathID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "key")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", common.BadRequest("invalid id", err)
	}
	if strings.TrimSpace(id) == "" {
		return "", common.BadRequest("id is required", nil)
	}
	return id, nil
}

func isCountryKey(key string) bool {
	if len(key) != 2 {
		return false
	}
	for _, c := range key {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrMalformedRecord):
		return common.NewAppError(common.CodeMalformedRecord, err.Error(), http.StatusBadGateway, err)
	case errors.Is(err, ErrRateOutOfRange), errors.Is(err, ErrUnknownCountry):
		return common.Validation(err.Error(), err)
	case errors.Is(err, metaobject.ErrNotFound):
		return common.NotFound("tax rate not found", err)
	}
	return common.Upstream(err)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, mapError(err))
}

func statusFor(err error) int {
	var appErr *common.AppError
	if errors.As(mapError(err), &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
