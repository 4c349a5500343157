// Package vectorstore is the retrieval layer: a thin course-aware store
// on top of a nearest-neighbor Backend. Two collections are maintained,
// one for course metadata (the catalog) and one for chunk content.
package vectorstore

import "context"

// Record is one unit of indexed text with flat string metadata.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Match is a nearest-neighbor hit. Lower distance means more similar.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Backend is the similarity-search capability. Implementations embed
// the text themselves. Query applies where as an equality predicate on
// metadata and returns matches ordered by ascending distance; ties keep
// the backend's order. An empty or missing collection queries to an
// empty result, not an error.
type Backend interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection, text string, where map[string]string, limit int) ([]Match, error)
	Get(ctx context.Context, collection, id string) (*Record, error)
	ListIDs(ctx context.Context, collection string) ([]string, error)
	Count(ctx context.Context, collection string) (int, error)
	Drop(ctx context.Context, collection string) error
}
