package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/course-rag/embeddings"
)

// PostgresBackend stores records in Postgres with pgvector embeddings.
// One table holds every collection, keyed by (collection, id), with
// metadata as jsonb so filters map to containment predicates.
type PostgresBackend struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

func NewPostgresBackend(pool *pgxpool.Pool, embedder embeddings.Embedder) *PostgresBackend {
	return &PostgresBackend{pool: pool, embedder: embedder}
}

func (b *PostgresBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if b.embedder == nil {
		return fmt.Errorf("embedder is not configured")
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Content
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed records: %w", err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedding count mismatch: have %d records, %d vectors", len(records), len(vectors))
	}

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for i, record := range records {
		metadata, mErr := json.Marshal(record.Metadata)
		if mErr != nil {
			err = fmt.Errorf("encode metadata for %s: %w", record.ID, mErr)
			return err
		}

		if _, err = tx.Exec(ctx, `
			INSERT INTO rag_records (collection, id, content, metadata, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			ON CONFLICT (collection, id) DO UPDATE
			SET content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding,
			    updated_at = NOW()
		`, collection, record.ID, record.Content, metadata, pgvector.NewVector(vectors[i])); err != nil {
			err = fmt.Errorf("upsert record %s: %w", record.ID, err)
			return err
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		err = fmt.Errorf("commit upsert: %w", commitErr)
		return err
	}
	return nil
}

func (b *PostgresBackend) Query(ctx context.Context, collection, text string, where map[string]string, limit int) ([]Match, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	vectors, err := b.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	filter, err := json.Marshal(where)
	if err != nil {
		return nil, fmt.Errorf("encode metadata filter: %w", err)
	}
	if where == nil {
		filter = []byte("{}")
	}

	rows, err := b.pool.Query(ctx, `
		SELECT id, content, metadata, (embedding <-> $2::vector) AS distance
		FROM rag_records
		WHERE collection = $1 AND metadata @> $3::jsonb
		ORDER BY embedding <-> $2::vector
		LIMIT $4
	`, collection, pgvector.NewVector(vectors[0]), filter, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var match Match
		var metadata []byte
		if err := rows.Scan(&match.ID, &match.Content, &metadata, &match.Distance); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &match.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", match.ID, err)
			}
		}
		matches = append(matches, match)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return matches, nil
}

func (b *PostgresBackend) Get(ctx context.Context, collection, id string) (*Record, error) {
	var record Record
	var metadata []byte
	err := b.pool.QueryRow(ctx, `
		SELECT id, content, metadata FROM rag_records
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&record.ID, &record.Content, &metadata)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
	}
	return &record, nil
}

func (b *PostgresBackend) ListIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT id FROM rag_records WHERE collection = $1 ORDER BY created_at
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *PostgresBackend) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := b.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM rag_records WHERE collection = $1
	`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (b *PostgresBackend) Drop(ctx context.Context, collection string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM rag_records WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	return nil
}

var _ Backend = (*PostgresBackend)(nil)
