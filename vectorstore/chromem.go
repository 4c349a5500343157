package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fabfab/course-rag/embeddings"
)

// EmbeddedBackend keeps the index in process memory using chromem-go.
// It mirrors every record so catalog reads (titles, outlines, counts)
// do not need a vector query. Durability is the Postgres backend's job.
type EmbeddedBackend struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
	records map[string]map[string]Record // collection -> id -> record
	order   map[string][]string          // insertion order per collection
}

// NewEmbeddedBackend builds an in-memory backend around the given
// embedding hook. Use EmbeddingFuncFromEmbedder to reuse a configured
// provider, or pass a local func in tests.
func NewEmbeddedBackend(embedFn chromem.EmbeddingFunc) *EmbeddedBackend {
	return &EmbeddedBackend{
		db:      chromem.NewDB(),
		embedFn: embedFn,
		records: map[string]map[string]Record{},
		order:   map[string][]string{},
	}
}

// EmbeddingFuncFromEmbedder adapts the embeddings provider interface to
// chromem's per-text hook.
func EmbeddingFuncFromEmbedder(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		return vectors[0], nil
	}
}

func (b *EmbeddedBackend) collection(name string) (*chromem.Collection, error) {
	return b.db.GetOrCreateCollection(name, nil, b.embedFn)
}

func (b *EmbeddedBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, err := b.collection(collection)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", collection, err)
	}

	if b.records[collection] == nil {
		b.records[collection] = map[string]Record{}
	}

	for _, record := range records {
		if _, exists := b.records[collection][record.ID]; exists {
			if err := col.Delete(ctx, nil, nil, record.ID); err != nil {
				return fmt.Errorf("replace record %s: %w", record.ID, err)
			}
		} else {
			b.order[collection] = append(b.order[collection], record.ID)
		}

		doc := chromem.Document{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: record.Metadata,
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add record %s: %w", record.ID, err)
		}
		b.records[collection][record.ID] = record
	}

	return nil
}

func (b *EmbeddedBackend) Query(ctx context.Context, collection, text string, where map[string]string, limit int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// chromem rejects k greater than the number of documents that match
	// the filter, so clamp against the mirror before querying.
	count := 0
	for _, record := range b.records[collection] {
		if matchesWhere(record.Metadata, where) {
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	if limit <= 0 {
		limit = 1
	}

	col, err := b.collection(collection)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}

	results, err := col.Query(ctx, text, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Distance: 1 - float64(r.Similarity),
		})
	}
	// chromem orders by similarity already; keep its order for ties and
	// only enforce the ascending-distance contract.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches, nil
}

func (b *EmbeddedBackend) Get(ctx context.Context, collection, id string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.records[collection][id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (b *EmbeddedBackend) ListIDs(ctx context.Context, collection string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.order[collection]...), nil
}

func (b *EmbeddedBackend) Count(ctx context.Context, collection string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.records[collection]), nil
}

func (b *EmbeddedBackend) Drop(ctx context.Context, collection string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db.GetCollection(collection, b.embedFn) != nil {
		if err := b.db.DeleteCollection(collection); err != nil {
			return fmt.Errorf("delete collection %s: %w", collection, err)
		}
	}
	delete(b.records, collection)
	delete(b.order, collection)
	return nil
}

func matchesWhere(metadata, where map[string]string) bool {
	for key, want := range where {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

var _ Backend = (*EmbeddedBackend)(nil)
