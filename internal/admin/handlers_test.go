package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/admin"
	"github.com/felipedev418/tax-rate-adjustment/internal/countries"
	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
)

func TestHandlers(t *testing.T) {
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore()})
	rate := decimal.RequireFromString("21")
	_, err := svc.Create(context.Background(), taxrate.Input{CountryCode: "NL", TaxRate: &rate})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", admin.NewHandler(svc).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/countries", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var opts []countries.Option
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	require.Equal(t, countries.Options(), opts)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tax-rate-table", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []admin.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Netherlands", rows[0].CountryName)
	require.Equal(t, "21%", rows[0].TaxRate)
}
