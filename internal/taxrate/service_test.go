package taxrate_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
)

type stubDoer struct {
	operation string
	variables map[string]any
	response  string
	err       error
}

func (s *stubDoer) Do(_ context.Context, operation, _ string, variables map[string]any, out any) error {
	s.operation = operation
	s.variables = variables
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.response), out)
}

type countingEnqueuer struct {
	calls int
	err   error
}

func (c *countingEnqueuer) EnqueueTaxRateSync(context.Context) error {
	c.calls++
	return c.err
}

func rate(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := metaobject.NewMemStore()
	enq := &countingEnqueuer{}
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: store, Enqueuer: enq})

	created, err := svc.Create(ctx, taxrate.Input{CountryCode: "DE", TaxRate: rate("19.00")})
	require.NoError(t, err)
	require.Equal(t, "DE", created.CountryCode)
	require.Equal(t, "19", created.TaxRate)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []taxrate.Record{created}, list)

	updated, err := svc.Update(ctx, created.ID, taxrate.Input{CountryCode: "AT", TaxRate: rate("20.5")})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "AT", updated.CountryCode)
	require.Equal(t, "20.5", updated.TaxRate)

	require.NoError(t, svc.Delete(ctx, created.ID))
	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, metaobject.ErrNotFound)
	require.Equal(t, 3, enq.calls)
}

func TestServiceCreateAllowsDuplicateCountries(t *testing.T) {
	ctx := context.Background()
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore()})
	_, err := svc.Create(ctx, taxrate.Input{CountryCode: "FR", TaxRate: rate("20")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "FR", TaxRate: rate("5.5")})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	got, found, err := svc.Lookup(ctx, "fr")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Equal(decimal.NewFromInt(20)), "first record wins on lookup")
}

func TestServiceRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore()})

	_, err := svc.Create(ctx, taxrate.Input{CountryCode: "DE", TaxRate: rate("100.01")})
	require.ErrorIs(t, err, taxrate.ErrRateOutOfRange)
	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "DE", TaxRate: rate("-1")})
	require.ErrorIs(t, err, taxrate.ErrRateOutOfRange)
	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "QQ", TaxRate: rate("5")})
	require.ErrorIs(t, err, taxrate.ErrUnknownCountry)

	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "DE", TaxRate: rate("0")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "DE", TaxRate: rate("100")})
	require.NoError(t, err)
}

func TestServiceListMalformedRecord(t *testing.T) {
	store := metaobject.NewMemStore()
	store.Put(metaobject.Metaobject{
		ID:     "gid://shopify/Metaobject/7",
		Type:   taxrate.MetaobjectType,
		Fields: []metaobject.Field{{Key: taxrate.FieldCountryCode, Value: "DE"}},
	})
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: store})

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, taxrate.ErrMalformedRecord)
	require.Contains(t, err.Error(), "gid://shopify/Metaobject/7")
	require.Contains(t, err.Error(), taxrate.FieldTaxRate)
}

func TestServiceLookupMissingCountry(t *testing.T) {
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore()})
	got, found, err := svc.Lookup(context.Background(), "IT")
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, got.IsZero())
}

func TestServiceSyncPushesRateMap(t *testing.T) {
	ctx := context.Background()
	doer := &stubDoer{response: `{"functionTaxCalculationCreate":{"functionTaxCalculation":{"id":"gid://shopify/FunctionTaxCalculation/1"},"userErrors":[]}}`}
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore(), Functions: doer})
	_, err := svc.Create(ctx, taxrate.Input{CountryCode: "NL", TaxRate: rate("21")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, taxrate.Input{CountryCode: "LU", TaxRate: rate("16.5")})
	require.NoError(t, err)

	res, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"NL": 21, "LU": 16.5}, res.TaxRates)
	require.Equal(t, "gid://shopify/FunctionTaxCalculation/1", res.CalculationID)
	require.Equal(t, "functionTaxCalculationCreate", doer.operation)
	require.Equal(t, res.TaxRates, doer.variables["rates"])
}

func TestServiceSyncUserErrors(t *testing.T) {
	doer := &stubDoer{response: `{"functionTaxCalculationCreate":{"functionTaxCalculation":null,"userErrors":[{"field":["function"],"message":"Function not found"}]}}`}
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore(), Functions: doer})
	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Function not found")
}

func TestServiceSyncTransportError(t *testing.T) {
	doer := &stubDoer{err: errors.New("boom")}
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore(), Functions: doer})
	_, err := svc.Sync(context.Background())
	require.EqualError(t, err, "boom")
}

func TestServiceSetupDefinitions(t *testing.T) {
	ctx := context.Background()
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore()})

	res, err := svc.SetupDefinitions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.MarketTaxDefinition.ID)
	require.NotEmpty(t, res.ProductTaxDefinition.ID)

	res, err = svc.SetupDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, res.MarketTaxDefinition.UserErrors, 1)
	require.Len(t, res.ProductTaxDefinition.UserErrors, 1)
}

func TestServiceEnqueueFailureDoesNotFailMutation(t *testing.T) {
	enq := &countingEnqueuer{err: errors.New("redis down")}
	svc := taxrate.NewService(taxrate.ServiceConfig{Store: metaobject.NewMemStore(), Enqueuer: enq})
	_, err := svc.Create(context.Background(), taxrate.Input{CountryCode: "SE", TaxRate: rate("25")})
	require.NoError(t, err)
	require.Equal(t, 1, enq.calls)
}
