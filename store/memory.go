package store

import (
	"context"
	"sort"
	"sync"

	"github.com/callinsight/call-pipeline/record"
)

// Memory keeps encoded records in process. Encoding on Put gives callers
// the same isolation and round-trip behaviour as the durable backends.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory { return &Memory{docs: map[string][]byte{}} }

func (m *Memory) Put(_ context.Context, key string, r *record.AnalysisRecord) error {
	b, err := record.Marshal(r)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = b
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (*record.AnalysisRecord, error) {
	m.mu.RLock()
	b, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	r, _, err := record.Unmarshal(b)
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return r, nil
}

func (m *Memory) List(_ context.Context) ([]record.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Summary, 0, len(m.docs))
	for key, b := range m.docs {
		r, _, err := record.Unmarshal(b)
		if err != nil {
			return nil, &Error{Op: "list", Key: key, Err: err}
		}
		out = append(out, r.Summarize())
	}
	sortSummaries(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// sortSummaries orders newest first, then by key.
func sortSummaries(s []record.Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].ProcessedAt.Equal(s[j].ProcessedAt) {
			return s[i].ProcessedAt.After(s[j].ProcessedAt)
		}
		return s[i].FileKey < s[j].FileKey
	})
}
