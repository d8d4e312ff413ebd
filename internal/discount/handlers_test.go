package discount_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/discount"
)

func newRouter() http.Handler {
	logger := zerolog.Nop()
	h := discount.NewHandler(discount.Evaluator{Table: discount.DefaultTable(), Logger: &logger})
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return r
}

func TestPreviewApplied(t *testing.T) {
	body := `{"cart":{"lines":[{"quantity":12,"merchandise":{"__typename":"ProductVariant","id":"gid://shopify/ProductVariant/1"}}]}}`
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/discounts/preview", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out discount.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Discounts, 1)
	require.Equal(t, 20.0, out.Discounts[0].Value.Percentage.Value)
	require.Equal(t, "gid://shopify/ProductVariant/1", out.Discounts[0].Targets[0].ProductVariant.ID)
	require.Equal(t, discount.StrategyFirst, out.DiscountApplicationStrategy)
}

func TestPreviewEmptyCart(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/discounts/preview", strings.NewReader(`{"cart":{"lines":[]}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"discounts":[],"discountApplicationStrategy":"FIRST"}`, rec.Body.String())
}

func TestPreviewBadPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/discounts/preview", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTiers(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/discounts/tiers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"policy":"first"`)
	require.Contains(t, rec.Body.String(), `"quantity":40`)
}
