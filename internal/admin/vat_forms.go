package admin

import (
	"context"

	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

// SettingsSaver persists VAT settings. *vat.SettingsService satisfies it.
type SettingsSaver interface {
	Save(ctx context.Context, enabled bool) (vat.Settings, error)
}

// VATValidator validates a VAT number. *vat.Validator satisfies it.
type VATValidator interface {
	Validate(ctx context.Context, countryCode, vatNumber string) vat.Result
}

// Banner is a status message shown on the page.
type Banner struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageSettingsUpdated confirms a saved toggle.
const MessageSettingsUpdated = "Settings updated successfully"

// VATSettingsForm is the enable/disable toggle. The page starts enabled until settings load.
type VATSettingsForm struct {
	Enabled bool
	Banner  *Banner
}

// NewVATSettingsForm returns the initial page state.
func NewVATSettingsForm() VATSettingsForm {
	return VATSettingsForm{Enabled: true}
}

// Load applies settings read from the server.
func (f VATSettingsForm) Load(s vat.Settings) VATSettingsForm {
	f.Enabled = s.Enabled
	return f
}

// Toggle flips the flag and returns the payload to persist.
func (f VATSettingsForm) Toggle() (VATSettingsForm, vat.Settings) {
	f.Enabled = !f.Enabled
	return f, vat.Settings{Enabled: f.Enabled}
}

// Submit toggles and saves. The banner reports the outcome.
func (f VATSettingsForm) Submit(ctx context.Context, saver SettingsSaver) (VATSettingsForm, error) {
	next, payload := f.Toggle()
	if _, err := saver.Save(ctx, payload.Enabled); err != nil {
		next.Banner = &Banner{Success: false, Message: err.Error()}
		return next, err
	}
	next.Banner = &Banner{Success: true, Message: MessageSettingsUpdated}
	return next, nil
}

// Status is the bold state word.
func (f VATSettingsForm) Status() string {
	if f.Enabled {
		return "enabled"
	}
	return "disabled"
}

// ActionLabel is the toggle button label.
func (f VATSettingsForm) ActionLabel() string {
	if f.Enabled {
		return "Disable"
	}
	return "Enable"
}

// VATTest is the "Test VAT Number" panel.
type VATTest struct {
	Input  string
	Result *vat.Result
}

// Run validates raw, taking the country from its first two characters.
func (t VATTest) Run(ctx context.Context, validator VATValidator, raw string) VATTest {
	country, number := vat.SplitVATNumber(raw)
	res := validator.Validate(ctx, country, number)
	return VATTest{Input: raw, Result: &res}
}
