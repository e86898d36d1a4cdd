package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// postgresStore is a Postgres+pgvector VectorStore, grounded on
// fbrzx-airplane-chat/internal/vectorstore/postgres.go's schema-DDL and
// transactional-upsert pattern, generalized from that reference's
// conversation/document-scoped single table to the core's named-collection
// abstraction (one table per collection, created on EnsureCollection).
type postgresStore struct {
	pool      *pgxpool.Pool
	dimension int
	mu        sync.Mutex
	ensured   map[string]bool
}

func newPostgresStore(cfg StoreConfig) (VectorStore, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &postgresStore{pool: pool, dimension: cfg.Dimension, ensured: make(map[string]bool)}, nil
}

func init() {
	registerStore("postgres", newPostgresStore)
}

func tableName(collection string) string {
	return "vectors_" + collection
}

func (s *postgresStore) EnsureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}
	table := tableName(collection)
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%[2]d) NOT NULL
);
`, table, s.dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	idxName := table + "_embedding_idx"
	idxDDL := fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = '%[1]s') THEN
		EXECUTE 'CREATE INDEX %[1]s ON %[2]s USING ivfflat (embedding vector_l2_ops) WITH (lists = 100);';
	END IF;
END
$$;`, idxName, table)
	if _, err := s.pool.Exec(ctx, idxDDL); err != nil && !strings.Contains(err.Error(), "ivfflat") {
		return fmt.Errorf("ensure index on %s: %w", collection, err)
	}
	s.ensured[collection] = true
	return nil
}

func (s *postgresStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if len(items) == 0 {
		return nil
	}
	table := tableName(collection)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	for _, item := range items {
		metaJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, document, metadata, embedding) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, table),
			item.ID, item.Document, metaJSON, pgvector.NewVector(item.Vector))
		if err != nil {
			return wrapErr(ErrVectorStoreError, "VectorStoreError", fmt.Errorf("upsert %s: %w", item.ID, err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *postgresStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error) {
	table := tableName(collection)
	query := fmt.Sprintf(`SELECT id, document, metadata, embedding <-> $1 AS distance FROM %s ORDER BY embedding <-> $1 LIMIT $2`, table)
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	defer rows.Close()
	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		var metaJSON []byte
		if err := rows.Scan(&m.ID, &m.Document, &metaJSON, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		_ = json.Unmarshal(metaJSON, &m.Metadata)
		if where != nil && !matchesWhere(m.Metadata, where) {
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *postgresStore) Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error) {
	table := tableName(collection)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, document, metadata FROM %s`, table))
	if err != nil {
		return nil, wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	defer rows.Close()
	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		var metaJSON []byte
		if err := rows.Scan(&m.ID, &m.Document, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		_ = json.Unmarshal(metaJSON, &m.Metadata)
		if where != nil && !matchesWhere(m.Metadata, where) {
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *postgresStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	table := tableName(collection)
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table), ids)
	return err
}

func (s *postgresStore) Count(ctx context.Context, collection string) (int, error) {
	table := tableName(collection)
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count)
	return count, err
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
