package shopify

import (
	"context"
	"fmt"
	"math/rand/v2"
)

const productsCountQuery = `
query shopifyProductCount {
  productsCount {
    count
  }
}`

type productsCountData struct {
	ProductsCount struct {
		Count int `json:"count"`
	} `json:"productsCount"`
}

// ProductsCount returns the number of products in the shop.
func (c *Client) ProductsCount(ctx context.Context) (int, error) {
	var data productsCountData
	if err := c.Do(ctx, "productsCount", productsCountQuery, nil, &data); err != nil {
		return 0, err
	}
	return data.ProductsCount.Count, nil
}

// DefaultSampleProducts is how many products CreateSampleProducts makes when asked for none.
const DefaultSampleProducts = 5

var (
	sampleAdjectives = []string{"autumn", "hidden", "bitter", "misty", "silent", "empty", "dry", "dark", "summer", "icy", "quiet", "white", "cool", "spring", "winter", "patient", "twilight", "dawn", "crimson", "wispy"}
	sampleNouns      = []string{"waterfall", "river", "breeze", "moon", "rain", "wind", "sea", "morning", "snow", "lake", "sunset", "pine", "shadow", "leaf", "dawn", "glitter", "forest", "hill", "cloud", "meadow"}
)

const productCreateMutation = `
mutation populateProduct($title: String!) {
  productCreate(product: {title: $title}) {
    product {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

func sampleTitle() string {
	return sampleAdjectives[rand.N(len(sampleAdjectives))] + " " + sampleNouns[rand.N(len(sampleNouns))]
}

// CreateSampleProducts creates n products with random titles for a dev store
// and returns their IDs. It stops at the first failure.
func (c *Client) CreateSampleProducts(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSampleProducts
	}
	ids := make([]string, 0, n)
	for range n {
		var data struct {
			Payload struct {
				Product *struct {
					ID string `json:"id"`
				} `json:"product"`
				UserErrors []UserError `json:"userErrors"`
			} `json:"productCreate"`
		}
		if err := c.Do(ctx, "productCreate", productCreateMutation, map[string]any{"title": sampleTitle()}, &data); err != nil {
			return ids, err
		}
		if err := CheckUserErrors("productCreate", data.Payload.UserErrors); err != nil {
			return ids, err
		}
		if data.Payload.Product == nil {
			return ids, fmt.Errorf("productCreate: no product returned")
		}
		ids = append(ids, data.Payload.Product.ID)
	}
	return ids, nil
}

const shopQuery = `
query shopName {
  shop {
    name
  }
}`

// Ping runs a minimal shop query, used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	var data struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	return c.Do(ctx, "shop", shopQuery, nil, &data)
}
