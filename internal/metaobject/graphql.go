package metaobject

import (
	"context"
	"fmt"
	"strings"

	"github.com/felipedev418/tax-rate-adjustment/internal/shopify"
)

// Doer runs a GraphQL operation. *shopify.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, operation, query string, variables map[string]any, out any) error
}

// GraphQLStore is the Admin API backed Store.
type GraphQLStore struct {
	client Doer
}

// NewGraphQLStore wraps a GraphQL client.
func NewGraphQLStore(client Doer) *GraphQLStore {
	return &GraphQLStore{client: client}
}

const listQuery = `
query ListMetaobjects($type: String!, $first: Int!) {
  metaobjects(type: $type, first: $first) {
    edges {
      node {
        id
        type
        fields {
          key
          value
        }
      }
    }
  }
}`

const createMutation = `
mutation CreateMetaobject($input: MetaobjectCreateInput!) {
  metaobjectCreate(metaobject: $input) {
    metaobject {
      id
      type
      fields {
        key
        value
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const updateMutation = `
mutation UpdateMetaobject($id: ID!, $input: MetaobjectUpdateInput!) {
  metaobjectUpdate(id: $id, metaobject: $input) {
    metaobject {
      id
      type
      fields {
        key
        value
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const deleteMutation = `
mutation DeleteMetaobject($id: ID!) {
  metaobjectDelete(id: $id) {
    deletedId
    userErrors {
      field
      message
      code
    }
  }
}`

const definitionMutation = `
mutation CreateMetaobjectDefinition($definition: MetaobjectDefinitionCreateInput!) {
  metaobjectDefinitionCreate(definition: $definition) {
    metaobjectDefinition {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

type listData struct {
	Metaobjects struct {
		Edges []struct {
			Node Metaobject `json:"node"`
		} `json:"edges"`
	} `json:"metaobjects"`
}

type mutationPayload struct {
	Metaobject *Metaobject          `json:"metaobject"`
	UserErrors []shopify.UserError `json:"userErrors"`
}

// List returns the first page of metaobjects of the given type.
func (s *GraphQLStore) List(ctx context.Context, typ string, first int) ([]Metaobject, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	var data listData
	if err := s.client.Do(ctx, "metaobjects", listQuery, map[string]any{"type": typ, "first": first}, &data); err != nil {
		return nil, err
	}
	out := make([]Metaobject, 0, len(data.Metaobjects.Edges))
	for _, edge := range data.Metaobjects.Edges {
		out = append(out, edge.Node)
	}
	return out, nil
}

// Create stores a new metaobject.
func (s *GraphQLStore) Create(ctx context.Context, typ string, fields []Field) (Metaobject, error) {
	var data struct {
		Payload mutationPayload `json:"metaobjectCreate"`
	}
	vars := map[string]any{"input": map[string]any{"type": typ, "fields": fields}}
	if err := s.client.Do(ctx, "metaobjectCreate", createMutation, vars, &data); err != nil {
		return Metaobject{}, err
	}
	return payloadResult("metaobjectCreate", data.Payload)
}

// Update replaces the given fields of an existing metaobject.
func (s *GraphQLStore) Update(ctx context.Context, id string, fields []Field) (Metaobject, error) {
	var data struct {
		Payload mutationPayload `json:"metaobjectUpdate"`
	}
	vars := map[string]any{"id": id, "input": map[string]any{"fields": fields}}
	if err := s.client.Do(ctx, "metaobjectUpdate", updateMutation, vars, &data); err != nil {
		return Metaobject{}, err
	}
	return payloadResult("metaobjectUpdate", data.Payload)
}

// Delete removes a metaobject and returns the deleted ID.
func (s *GraphQLStore) Delete(ctx context.Context, id string) (string, error) {
	var data struct {
		Payload struct {
			DeletedID  *string             `json:"deletedId"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"metaobjectDelete"`
	}
	if err := s.client.Do(ctx, "metaobjectDelete", deleteMutation, map[string]any{"id": id}, &data); err != nil {
		return "", err
	}
	if err := mutationError("metaobjectDelete", data.Payload.UserErrors); err != nil {
		return "", err
	}
	if data.Payload.DeletedID == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *data.Payload.DeletedID, nil
}

// CreateDefinition registers a metaobject type. userErrors are part of the result.
func (s *GraphQLStore) CreateDefinition(ctx context.Context, def Definition) (DefinitionResult, error) {
	var data struct {
		Payload struct {
			Definition *struct {
				ID string `json:"id"`
			} `json:"metaobjectDefinition"`
			UserErrors []DefinitionError `json:"userErrors"`
		} `json:"metaobjectDefinitionCreate"`
	}
	if err := s.client.Do(ctx, "metaobjectDefinitionCreate", definitionMutation, map[string]any{"definition": def}, &data); err != nil {
		return DefinitionResult{}, err
	}
	res := DefinitionResult{UserErrors: data.Payload.UserErrors}
	if res.UserErrors == nil {
		res.UserErrors = []DefinitionError{}
	}
	if data.Payload.Definition != nil {
		res.ID = data.Payload.Definition.ID
	}
	return res, nil
}

func payloadResult(action string, p mutationPayload) (Metaobject, error) {
	if err := mutationError(action, p.UserErrors); err != nil {
		return Metaobject{}, err
	}
	if p.Metaobject == nil {
		return Metaobject{}, fmt.Errorf("%s: %w", action, shopify.ErrMissingData)
	}
	return *p.Metaobject, nil
}

func mutationError(action string, errs []shopify.UserError) error {
	for _, ue := range errs {
		if strings.EqualFold(ue.Code, "RECORD_NOT_FOUND") || strings.EqualFold(ue.Code, "NOT_FOUND") {
			return fmt.Errorf("%w: %s", ErrNotFound, ue.Message)
		}
	}
	return shopify.CheckUserErrors(action, errs)
}
