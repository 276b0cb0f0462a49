package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/callinsight/call-pipeline/record"
	"github.com/callinsight/call-pipeline/sentiment"
)

// Postgres keeps each record as JSONB next to a few listing columns.
// Duration is a NUMERIC column so it survives without float drift.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
	log   logrus.FieldLogger
}

func NewPostgres(ctx context.Context, dbURL, table string, log logrus.FieldLogger) (*Postgres, error) {
	if table == "" {
		table = "call_analyses"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("connect to postgres: %w", err)}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("ping postgres: %w", err)}
	}
	s := &Postgres{pool: pool, table: pgx.Identifier{table}.Sanitize(), log: log}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureTable(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			file_key          TEXT PRIMARY KEY,
			filename          TEXT NOT NULL,
			overall_sentiment TEXT NOT NULL,
			duration          NUMERIC NOT NULL,
			processed_at      TIMESTAMPTZ NOT NULL,
			record            JSONB NOT NULL
		);
	`, s.table)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return &Error{Op: "open", Err: fmt.Errorf("create table: %w", err)}
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, key string, r *record.AnalysisRecord) error {
	b, err := record.Marshal(r)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (file_key, filename, overall_sentiment, duration, processed_at, record)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6::text::jsonb)
		ON CONFLICT (file_key) DO UPDATE SET
			filename = EXCLUDED.filename,
			overall_sentiment = EXCLUDED.overall_sentiment,
			duration = EXCLUDED.duration,
			processed_at = EXCLUDED.processed_at,
			record = EXCLUDED.record
	`, s.table)
	_, err = s.pool.Exec(ctx, q, key, r.Filename, string(r.Sentiment),
		record.ToDecimal(r.Duration).String(), r.ProcessedAt, string(b))
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) (*record.AnalysisRecord, error) {
	q := fmt.Sprintf(`SELECT record::text, duration::text FROM %s WHERE file_key = $1`, s.table)
	var doc, duration string
	err := s.pool.QueryRow(ctx, q, key).Scan(&doc, &duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}

	r, malformed, err := record.Unmarshal([]byte(doc))
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	if malformed {
		s.log.WithField("file_key", key).Warn("stored sentiment analysis malformed, using defaults")
	}
	if r.Duration, err = record.ParseDecimal(duration); err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return r, nil
}

func (s *Postgres) List(ctx context.Context) ([]record.Summary, error) {
	q := fmt.Sprintf(`
		SELECT file_key, filename, overall_sentiment, duration::text, processed_at
		FROM %s ORDER BY processed_at DESC, file_key
	`, s.table)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	defer rows.Close()

	out := []record.Summary{}
	for rows.Next() {
		var (
			sum       record.Summary
			label     string
			duration  string
			processed time.Time
		)
		if err := rows.Scan(&sum.FileKey, &sum.Filename, &label, &duration, &processed); err != nil {
			return nil, &Error{Op: "list", Err: err}
		}
		sum.Sentiment = sentiment.Label(label)
		if !sum.Sentiment.Valid() {
			sum.Sentiment = sentiment.Neutral
		}
		if sum.Duration, err = record.ParseDecimal(duration); err != nil {
			return nil, &Error{Op: "list", Key: sum.FileKey, Err: err}
		}
		sum.ProcessedAt = processed.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	return out, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
