package vat

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

// ValidateInput is the POST /api/validate-vat payload.
type ValidateInput struct {
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	VATNumber   string `json:"vatNumber" validate:"required,max=32"`
}

// Normalize prepares fields for validation. A missing country is taken from the number prefix.
func (in *ValidateInput) Normalize() {
	in.CountryCode = strings.ToUpper(strings.TrimSpace(in.CountryCode))
	in.VATNumber = strings.TrimSpace(in.VATNumber)
	if in.CountryCode == "" && in.VATNumber != "" {
		in.CountryCode, _ = SplitVATNumber(in.VATNumber)
	}
}

// Handler exposes VAT validation and settings endpoints.
type Handler struct {
	validator *Validator
	settings  *SettingsService
	limit     func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Validator *Validator
	Settings  *SettingsService
	// RateLimit wraps the validation endpoint when set.
	RateLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{validator: cfg.Validator, settings: cfg.Settings, limit: cfg.RateLimit}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	validate := http.Handler(http.HandlerFunc(h.ValidateVAT))
	if h.limit != nil {
		validate = h.limit(validate)
	}
	r.Method(http.MethodPost, "/validate-vat", validate)
	r.Get("/vat-settings", h.GetSettings)
	r.Post("/vat-settings", h.SaveSettings)
}

// ValidateVAT handles POST /api/validate-vat.
func (h *Handler) ValidateVAT(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "vat validator not configured", nil)
		return
	}
	var in ValidateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	res := h.validator.Validate(r.Context(), in.CountryCode, in.VATNumber)
	common.JSON(w, StatusCode(res.Status), res)
}

// GetSettings handles GET /api/vat-settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "vat settings not configured", nil)
		return
	}
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		common.WriteError(w, common.Upstream(err))
		return
	}
	common.JSON(w, http.StatusOK, settings)
}

// SaveSettings handles POST /api/vat-settings.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "vat settings not configured", nil)
		return
	}
	var in SettingsInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	settings, err := h.settings.Save(r.Context(), *in.Enabled)
	if err != nil {
		common.WriteError(w, common.Upstream(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "enabled": settings.Enabled})
}

// StatusCode maps a validation status onto the HTTP response code.
func StatusCode(s Status) int {
	switch s {
	case StatusServiceError:
		return http.StatusBadGateway
	case StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusOK
	}
}
