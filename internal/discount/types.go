package discount

// MerchandiseProductVariant is the typename carried by variant merchandise.
const MerchandiseProductVariant = "ProductVariant"

// ApplicationStrategy mirrors the function API enum of the same name.
type ApplicationStrategy string

// StrategyFirst applies the first discount in the list only.
const StrategyFirst ApplicationStrategy = "FIRST"

// Merchandise references what a cart line is buying.
type Merchandise struct {
	TypeName string `json:"__typename"`
	ID       string `json:"id,omitempty"`
}

// CartLine is a single cart entry handed to the evaluator.
type CartLine struct {
	Quantity    int         `json:"quantity"`
	Merchandise Merchandise `json:"merchandise"`
}

// Cart groups the lines of a checkout.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Input is the payload the function runtime provides.
type Input struct {
	Cart Cart `json:"cart"`
}

// ProductVariantTarget identifies a variant a discount applies to.
type ProductVariantTarget struct {
	ID string `json:"id"`
}

// Target references a discounted cart entity.
type Target struct {
	ProductVariant *ProductVariantTarget `json:"productVariant,omitempty"`
}

// Percentage is a percentage discount value.
type Percentage struct {
	Value float64 `json:"value"`
}

// Value wraps the discount value variants supported by the output.
type Value struct {
	Percentage *Percentage `json:"percentage,omitempty"`
}

// Discount is one entry of the output decision.
type Discount struct {
	Targets []Target `json:"targets"`
	Value   Value    `json:"value"`
	Message string   `json:"message,omitempty"`
}

// Output is the decision returned to the function runtime.
type Output struct {
	Discounts                   []Discount          `json:"discounts"`
	DiscountApplicationStrategy ApplicationStrategy `json:"discountApplicationStrategy"`
}

// Empty returns the no-discount sentinel.
func Empty() Output {
	return Output{
		Discounts:                   []Discount{},
		DiscountApplicationStrategy: StrategyFirst,
	}
}

// IsEmpty reports whether the decision carries no discount.
func (o Output) IsEmpty() bool {
	return len(o.Discounts) == 0
}
