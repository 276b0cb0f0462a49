// Package store persists analysis records keyed by file identifier.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/callinsight/call-pipeline/record"
)

var ErrNotFound = errors.New("analysis not found")

// Store is a key-value store of analysis records. Put replaces any
// existing record for the key.
type Store interface {
	Put(ctx context.Context, key string, r *record.AnalysisRecord) error
	Get(ctx context.Context, key string) (*record.AnalysisRecord, error)
	List(ctx context.Context) ([]record.Summary, error)
	Close() error
}

// Error is a persistence failure carrying the underlying cause.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
