package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVector keeps one embedding row per call in a pgvector column.
type PgVector struct {
	pool  *pgxpool.Pool
	table string
	dim   int
	emb   Embedder
}

func NewPgVector(ctx context.Context, dbURL, table string, dim int, emb Embedder) (*PgVector, error) {
	if table == "" {
		table = "call_embeddings"
	}
	if dim <= 0 {
		dim = 1536
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgVector{pool: pool, table: pgx.Identifier{table}.Sanitize(), dim: dim, emb: emb}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVector) ensureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			file_key   TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			summary    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT now()
		);
	`, s.table, s.dim)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}
	return nil
}

func (s *PgVector) Upsert(ctx context.Context, doc Document) error {
	v, err := s.emb.Embed(ctx, doc.Text)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (file_key, filename, summary, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_key) DO UPDATE SET
			filename = EXCLUDED.filename,
			summary = EXCLUDED.summary,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, s.table)
	if _, err := s.pool.Exec(ctx, q, doc.FileKey, doc.Filename, doc.Summary, pgvector.NewVector(v)); err != nil {
		return fmt.Errorf("upsert embedding %q: %w", doc.FileKey, err)
	}
	return nil
}

func (s *PgVector) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	v, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		SELECT file_key, filename, summary, 1 - (embedding <=> $1) AS score
		FROM %s ORDER BY embedding <=> $1 LIMIT $2
	`, s.table)
	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(v), topK)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.FileKey, &h.Filename, &h.Summary, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVector) Close() error {
	s.pool.Close()
	return nil
}
