package common

import "context"

type ctxKey string

const shopKey ctxKey = "session/shop"

// WithShop stores the shop domain of the verified session on the context.
func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

// Shop extracts the session shop domain from the context if present.
func Shop(ctx context.Context) (string, bool) {
	v := ctx.Value(shopKey)
	if v == nil {
		return "", false
	}
	shop, ok := v.(string)
	return shop, ok && shop != ""
}
