package discount

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func variantLine(id string, qty int) CartLine {
	return CartLine{Quantity: qty, Merchandise: Merchandise{TypeName: MerchandiseProductVariant, ID: id}}
}

func TestTotalQuantity(t *testing.T) {
	if got := TotalQuantity(nil); got != 0 {
		t.Fatalf("expected 0 for empty cart, got %d", got)
	}
	lines := []CartLine{
		variantLine("gid://shopify/ProductVariant/1", 3),
		{Quantity: 4, Merchandise: Merchandise{TypeName: "CustomProduct"}},
		variantLine("gid://shopify/ProductVariant/2", 5),
	}
	if got := TotalQuantity(lines); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestTotalQuantitySaturates(t *testing.T) {
	lines := []CartLine{
		variantLine("gid://shopify/ProductVariant/1", math.MaxInt),
		variantLine("gid://shopify/ProductVariant/2", 5),
	}
	total := TotalQuantity(lines)
	if total != math.MaxInt {
		t.Fatalf("expected saturated total, got %d", total)
	}
	tier, ok := Select(total, DefaultTable(), PolicyFirstMatch)
	if !ok || tier.Percentage != 20 {
		t.Fatalf("huge carts must still get the top tier, got %+v ok=%v", tier, ok)
	}
}

func TestSelectFirstMatch(t *testing.T) {
	table := DefaultTable()
	if _, ok := Select(9, table, PolicyFirstMatch); ok {
		t.Fatalf("expected no tier for 9")
	}
	tier, ok := Select(10, table, PolicyFirstMatch)
	if !ok || tier.Percentage != 20 || tier.Message != "20% off 10 or more" {
		t.Fatalf("unexpected tier for 10: %+v", tier)
	}
	// Table order wins, so 40 still lands on the 10 tier.
	tier, ok = Select(40, table, PolicyFirstMatch)
	if !ok || tier.MinQuantity != 10 || tier.Percentage != 20 {
		t.Fatalf("expected first match 10 tier for 40, got %+v", tier)
	}
}

func TestSelectHighestThreshold(t *testing.T) {
	table := DefaultTable()
	tier, ok := Select(40, table, PolicyHighestThreshold)
	if !ok || tier.MinQuantity != 40 || tier.Percentage != 30 {
		t.Fatalf("expected 40 tier, got %+v", tier)
	}
	tier, ok = Select(39, table, PolicyHighestThreshold)
	if !ok || tier.MinQuantity != 10 {
		t.Fatalf("expected 10 tier for 39, got %+v", tier)
	}
}

func TestSelectDescendingTableFirstMatch(t *testing.T) {
	table := Table{
		{MinQuantity: 40, Percentage: 30, Message: "30% off 40 or more"},
		{MinQuantity: 10, Percentage: 20, Message: "20% off 10 or more"},
	}
	tier, ok := Select(40, table, PolicyFirstMatch)
	if !ok || tier.Percentage != 30 {
		t.Fatalf("expected 30%% tier from priority ordered table, got %+v", tier)
	}
}

func TestBuildTargetsSkipsNonVariants(t *testing.T) {
	lines := []CartLine{
		variantLine("gid://shopify/ProductVariant/1", 1),
		{Quantity: 2, Merchandise: Merchandise{TypeName: "CustomProduct", ID: "x"}},
		variantLine("gid://shopify/ProductVariant/2", 1),
	}
	targets := BuildTargets(lines)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].ProductVariant.ID != "gid://shopify/ProductVariant/1" || targets[1].ProductVariant.ID != "gid://shopify/ProductVariant/2" {
		t.Fatalf("targets out of order: %+v", targets)
	}
}

func TestEvaluatorNoMatchReturnsEmptySentinel(t *testing.T) {
	ev := Evaluator{Table: DefaultTable()}
	out := ev.Run(context.Background(), Input{Cart: Cart{Lines: []CartLine{variantLine("a", 9)}}})
	if !out.IsEmpty() || out.DiscountApplicationStrategy != StrategyFirst {
		t.Fatalf("expected empty decision, got %+v", out)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"discounts":[],"discountApplicationStrategy":"FIRST"}` {
		t.Fatalf("unexpected sentinel json %s", raw)
	}
}

func TestEvaluatorAppliesTier(t *testing.T) {
	ev := Evaluator{Table: DefaultTable()}
	in := Input{Cart: Cart{Lines: []CartLine{
		variantLine("gid://shopify/ProductVariant/1", 6),
		{Quantity: 4, Merchandise: Merchandise{TypeName: "CustomProduct"}},
	}}}
	out := ev.Run(context.Background(), in)
	if len(out.Discounts) != 1 {
		t.Fatalf("expected a single discount, got %d", len(out.Discounts))
	}
	d := out.Discounts[0]
	if d.Value.Percentage == nil || d.Value.Percentage.Value != 20 {
		t.Fatalf("unexpected value %+v", d.Value)
	}
	if d.Message != "20% off 10 or more" {
		t.Fatalf("unexpected message %q", d.Message)
	}
	if len(d.Targets) != 1 {
		t.Fatalf("expected one variant target, got %d", len(d.Targets))
	}
}

func TestEvaluatorParsesFunctionInput(t *testing.T) {
	payload := `{"cart":{"lines":[{"quantity":40,"merchandise":{"__typename":"ProductVariant","id":"gid://shopify/ProductVariant/7"}}]}}`
	var in Input
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	out := Evaluator{Table: DefaultTable(), Policy: PolicyHighestThreshold}.Run(context.Background(), in)
	raw, _ := json.Marshal(out)
	want := `{"discounts":[{"targets":[{"productVariant":{"id":"gid://shopify/ProductVariant/7"}}],"value":{"percentage":{"value":30}},"message":"30% off 40 or more"}],"discountApplicationStrategy":"FIRST"}`
	if string(raw) != want {
		t.Fatalf("unexpected output\n got %s\nwant %s", raw, want)
	}
}

func TestTableValidate(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	dup := Table{{MinQuantity: 10, Percentage: 5}, {MinQuantity: 10, Percentage: 10}}
	if err := dup.Validate(); !errors.Is(err, ErrDuplicateThreshold) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	bad := Table{{MinQuantity: 1, Percentage: 101}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected invalid tier error, got %v", err)
	}
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(strings.NewReader(`[{"quantity":5,"discount":10,"message":"10% off 5 or more"}]`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(table) != 1 || table[0].MinQuantity != 5 || table[0].Percentage != 10 {
		t.Fatalf("unexpected table %+v", table)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyFirstMatch {
		t.Fatalf("expected default first match, got %v %v", p, err)
	}
	if p, err := ParsePolicy("Highest"); err != nil || p != PolicyHighestThreshold {
		t.Fatalf("expected highest, got %v %v", p, err)
	}
	if _, err := ParsePolicy("cheapest"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected unknown policy error, got %v", err)
	}
}

func TestConfigure(t *testing.T) {
	e, err := Configure("", "highest")
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if e.Policy != PolicyHighestThreshold || len(e.Table) != 2 {
		t.Fatalf("unexpected evaluator %+v", e)
	}

	path := filepath.Join(t.TempDir(), "tiers.json")
	if err := os.WriteFile(path, []byte(`[{"quantity":3,"discount":5,"message":"5% off 3 or more"}]`), 0o600); err != nil {
		t.Fatalf("write tiers: %v", err)
	}
	e, err = Configure(path, "")
	if err != nil {
		t.Fatalf("configure from file: %v", err)
	}
	if len(e.Table) != 1 || e.Table[0].MinQuantity != 3 {
		t.Fatalf("unexpected table %+v", e.Table)
	}

	if _, err := Configure(filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Fatal("expected error for missing tiers file")
	}
	if _, err := Configure("", "cheapest"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}
