package dbpedia

import (
	"context"

	"github.com/WessleyAI/orggraph/engine/domain"
)

// Default result limits per lookup.
const (
	DefaultEntityLimit   = 5
	DefaultRelationLimit = 50
)

// Selector runs a SELECT query. *Client implements it.
type Selector interface {
	Select(ctx context.Context, query string) (*Results, error)
}

// EntityResolver finds organizations whose English label contains a name.
type EntityResolver struct {
	sel   Selector
	limit int
}

// NewEntityResolver creates an EntityResolver. limit <= 0 uses DefaultEntityLimit.
func NewEntityResolver(sel Selector, limit int) *EntityResolver {
	if limit <= 0 {
		limit = DefaultEntityLimit
	}
	return &EntityResolver{sel: sel, limit: limit}
}

// ResolveEntity implements domain.EntityResolver.
func (r *EntityResolver) ResolveEntity(ctx context.Context, name string) ([]domain.EntityRow, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, domain.NewResolutionError(ResolverEntity, name, err)
	}
	res, err := r.sel.Select(ctx, EntityQuery(name, r.limit))
	if err != nil {
		return nil, domain.NewResolutionError(ResolverEntity, name, err)
	}
	return EntityRows(res), nil
}

// EntityRows maps entity query bindings to rows.
func EntityRows(res *Results) []domain.EntityRow {
	if res == nil {
		return nil
	}
	rows := make([]domain.EntityRow, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		rows = append(rows, domain.EntityRow{
			Identifier:    b.Value("organization"),
			Label:         b.Value("label"),
			Abstract:      b.Value("abstract"),
			Headquarters:  b.Value("headquarters"),
			FoundingDate:  b.Value("foundingDate"),
			Industry:      b.Value("industry"),
			EmployeeCount: b.Value("numberOfEmployees"),
			Location:      b.Value("location"),
			Country:       b.Value("country"),
		})
	}
	return rows
}

// RelationResolver lists organizations linked to an identifier in either
// direction.
type RelationResolver struct {
	sel   Selector
	limit int
}

// NewRelationResolver creates a RelationResolver. limit <= 0 uses
// DefaultRelationLimit.
func NewRelationResolver(sel Selector, limit int) *RelationResolver {
	if limit <= 0 {
		limit = DefaultRelationLimit
	}
	return &RelationResolver{sel: sel, limit: limit}
}

// ResolveRelations implements domain.RelationResolver. Identifiers that
// cannot be embedded as an IRI are rejected without a request.
func (r *RelationResolver) ResolveRelations(ctx context.Context, id string) ([]domain.Relation, error) {
	if err := domain.ValidateIdentifier(id); err != nil {
		return nil, domain.NewResolutionError(ResolverRelation, id, err)
	}
	res, err := r.sel.Select(ctx, RelationQuery(id, r.limit))
	if err != nil {
		return nil, domain.NewResolutionError(ResolverRelation, id, err)
	}
	return Relations(res), nil
}

// Relations maps relation query bindings to relations. Rows missing the
// related organization or its label are dropped.
func Relations(res *Results) []domain.Relation {
	if res == nil {
		return nil
	}
	var out []domain.Relation
	for _, b := range res.Results.Bindings {
		rel := domain.Relation{
			Direction:  domain.ParseDirection(b.Value("relation")),
			Kind:       b.Value("relationType"),
			Identifier: b.Value("relatedOrg"),
			Label:      b.Value("relatedOrgLabel"),
		}
		if rel.Kind == "" {
			rel.Kind = "unknown"
		}
		if !rel.Usable() {
			continue
		}
		out = append(out, rel)
	}
	return out
}

// Resolver names used in errors.
const (
	ResolverEntity   = "entity"
	ResolverRelation = "relation"
)
