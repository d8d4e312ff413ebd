package taxrate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/felipedev418/tax-rate-adjustment/internal/countries"
	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
	"github.com/felipedev418/tax-rate-adjustment/internal/shopify"
)

// SyncEnqueuer schedules an asynchronous configuration sync.
type SyncEnqueuer interface {
	EnqueueTaxRateSync(ctx context.Context) error
}

// Service implements tax-rate administration over a metaobject store.
// Every read goes to the store; nothing is cached locally.
type Service struct {
	store     metaobject.Store
	functions metaobject.Doer
	enqueuer  SyncEnqueuer
	logger    zerolog.Logger
}

// ServiceConfig wires the Service.
type ServiceConfig struct {
	Store metaobject.Store
	// Functions runs the function configuration mutation. Sync is disabled when nil.
	Functions metaobject.Doer
	Enqueuer  SyncEnqueuer
	Logger    zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, functions: cfg.Functions, enqueuer: cfg.Enqueuer, logger: cfg.Logger}
}

// List returns every stored tax rate from the first page of the store.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	items, err := s.store.List(ctx, MetaobjectType, metaobject.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := FromMetaobject(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Create stores a new record. Uniqueness of the country is left to the store.
func (s *Service) Create(ctx context.Context, in Input) (Record, error) {
	if err := in.Check(); err != nil {
		return Record{}, err
	}
	created, err := s.store.Create(ctx, MetaobjectType, in.fields())
	if err != nil {
		return Record{}, err
	}
	s.scheduleSync(ctx)
	return FromMetaobject(created)
}

// Update replaces both fields of the record.
func (s *Service) Update(ctx context.Context, id string, in Input) (Record, error) {
	if err := in.Check(); err != nil {
		return Record{}, err
	}
	updated, err := s.store.Update(ctx, id, in.fields())
	if err != nil {
		return Record{}, err
	}
	s.scheduleSync(ctx)
	return FromMetaobject(updated)
}

// Delete removes the record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.scheduleSync(ctx)
	return nil
}

// Lookup returns the first stored rate for a country. A missing country
// yields a zero rate and found=false.
func (s *Service) Lookup(ctx context.Context, countryCode string) (decimal.Decimal, bool, error) {
	code := countries.Normalize(countryCode)
	records, err := s.List(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	for _, rec := range records {
		if !strings.EqualFold(rec.CountryCode, code) {
			continue
		}
		rate, err := rec.Rate()
		if err != nil {
			return decimal.Zero, false, err
		}
		return rate, true, nil
	}
	return decimal.Zero, false, nil
}

// Rates maps each stored country to its numeric rate. Later records win on duplicates.
func (s *Service) Rates(ctx context.Context) (map[string]float64, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(records))
	for _, rec := range records {
		rate, err := rec.Rate()
		if err != nil {
			return nil, err
		}
		out[rec.CountryCode] = rate.InexactFloat64()
	}
	return out, nil
}

const syncMutation = `
mutation CreateTaxCalculation($rates: JSON!) {
  functionTaxCalculationCreate(
    function: "tax-calculator"
    configuration: {
      taxRates: $rates
    }
  ) {
    functionTaxCalculation {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// SyncResult is the outcome of pushing rates to the tax calculator.
type SyncResult struct {
	TaxRates      map[string]float64 `json:"taxRates"`
	CalculationID string             `json:"calculationId,omitempty"`
}

// Sync pushes the current rate map as the tax calculator function configuration.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	rates, err := s.Rates(ctx)
	if err != nil {
		observeSync("error")
		return SyncResult{}, err
	}
	if s.functions == nil {
		observeSync("skipped")
		return SyncResult{TaxRates: rates}, nil
	}
	var data struct {
		Payload struct {
			Calculation *struct {
				ID string `json:"id"`
			} `json:"functionTaxCalculation"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"functionTaxCalculationCreate"`
	}
	if err := s.functions.Do(ctx, "functionTaxCalculationCreate", syncMutation, map[string]any{"rates": rates}, &data); err != nil {
		observeSync("error")
		return SyncResult{}, err
	}
	if err := shopify.CheckUserErrors("functionTaxCalculationCreate", data.Payload.UserErrors); err != nil {
		observeSync("error")
		return SyncResult{}, err
	}
	res := SyncResult{TaxRates: rates}
	if data.Payload.Calculation != nil {
		res.CalculationID = data.Payload.Calculation.ID
	}
	observeSync("ok")
	s.logFor(ctx).Info().Int("countries", len(rates)).Msg("tax rates synced")
	return res, nil
}

// Definitions are the metaobject types the app relies on.
func Definitions() (market, product metaobject.Definition) {
	market = metaobject.Definition{
		Type: MetaobjectType,
		Name: "Market Tax Rate",
		FieldDefinitions: []metaobject.FieldDefinition{
			{Key: FieldCountryCode, Name: "Country Code", Type: "single_line_text_field", Required: true},
			{Key: FieldTaxRate, Name: "Tax Rate", Type: "number_decimal", Required: true},
		},
	}
	product = metaobject.Definition{
		Type: ProductRateType,
		Name: "Product Tax Rate",
		FieldDefinitions: []metaobject.FieldDefinition{
			{Key: FieldProductID, Name: "Product ID", Type: "single_line_text_field", Required: true},
			{Key: FieldCountryCode, Name: "Country Code", Type: "single_line_text_field", Required: true},
			{Key: FieldTaxRate, Name: "Tax Rate", Type: "number_decimal", Required: true},
		},
	}
	return market, product
}

// SetupResult reports both definition outcomes.
type SetupResult struct {
	MarketTaxDefinition  metaobject.DefinitionResult `json:"marketTaxDefinition"`
	ProductTaxDefinition metaobject.DefinitionResult `json:"productTaxDefinition"`
}

// SetupDefinitions creates the market and product tax rate definitions.
func (s *Service) SetupDefinitions(ctx context.Context) (SetupResult, error) {
	market, product := Definitions()
	marketRes, err := s.store.CreateDefinition(ctx, market)
	if err != nil {
		return SetupResult{}, err
	}
	productRes, err := s.store.CreateDefinition(ctx, product)
	if err != nil {
		return SetupResult{}, err
	}
	return SetupResult{MarketTaxDefinition: marketRes, ProductTaxDefinition: productRes}, nil
}

func (s *Service) scheduleSync(ctx context.Context) {
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.EnqueueTaxRateSync(ctx); err != nil {
		s.logFor(ctx).Warn().Err(err).Msg("tax rate sync enqueue failed")
	}
}

func (s *Service) logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

func observeSync(result string) {
	if obs.TaxRateSyncTotal != nil {
		obs.TaxRateSyncTotal.WithLabelValues(result).Inc()
	}
}
