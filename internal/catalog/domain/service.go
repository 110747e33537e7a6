package domain

import (
	"context"
	"errors"
)

// MatchType reports how a resolution was satisfied.
type MatchType string

const (
	// MatchExact means the source name and size matched a stored mapping.
	MatchExact MatchType = "exact"
	// MatchNameOnly means only the name matched, ignoring size. Used by
	// diagnostic lookups, never by receipt creation.
	MatchNameOnly MatchType = "name_only"
	// MatchAutoCreated means the item was created in the POS and the
	// mapping stored as part of this resolution.
	MatchAutoCreated MatchType = "auto_created"
)

// Option is a modifier attached to the incoming order line, carried here
// so the resolver can extract the size.
type Option struct {
	Name      string
	GroupName string
	Price     float64
}

// ResolveRequest asks for the POS variant behind one order line.
type ResolveRequest struct {
	Name    string
	Price   float64
	Options []Option

	// DisableAutoCreate suppresses item creation for this resolution
	// regardless of the global setting.
	DisableAutoCreate bool
}

// Match is a successful resolution.
type Match struct {
	Entry *CatalogEntry `json:"entry"`
	Type  MatchType     `json:"match_type"`
}

type Service interface {
	// Resolve returns the mapping for an order line, auto-creating the
	// POS item when no exact mapping exists and creation is allowed.
	Resolve(ctx context.Context, req ResolveRequest) (*Match, error)
	// Lookup is the diagnostic form: exact match first, then name-only
	// fallback, never creating anything.
	Lookup(ctx context.Context, name, size string) (*Match, error)
	// List returns every stored mapping.
	List(ctx context.Context) ([]CatalogEntry, error)
}

var (
	ErrNoMapping          = errors.New("no_mapping")
	ErrItemCreationFailed = errors.New("item_creation_failed")
	ErrInvalidName        = errors.New("invalid_name")
)
