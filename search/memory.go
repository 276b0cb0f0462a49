package search

import (
	"context"
	"math"
	"strings"
	"sync"
)

// Memory scores documents by bag-of-words cosine similarity. It needs no
// embedding service.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

type memDoc struct {
	Document
	terms map[string]float64
}

func NewMemory() *Memory { return &Memory{docs: map[string]memDoc{}} }

func termVector(text string) map[string]float64 {
	m := map[string]float64{}
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '\'' || r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 0x7f)
	}) {
		m[t]++
	}
	var sum float64
	for _, v := range m {
		sum += v * v
	}
	if sum == 0 {
		return m
	}
	norm := math.Sqrt(sum)
	for k, v := range m {
		m[k] = v / norm
	}
	return m
}

func cosine(a, b map[string]float64) float64 {
	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	return dot
}

func (m *Memory) Upsert(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.FileKey] = memDoc{Document: doc, terms: termVector(doc.Text)}
	return nil
}

func (m *Memory) Search(_ context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	qv := termVector(query)
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.docs))
	for _, d := range m.docs {
		score := cosine(qv, d.terms)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{FileKey: d.FileKey, Filename: d.Filename, Summary: d.Summary, Score: score})
	}
	m.mu.RUnlock()
	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *Memory) Close() error { return nil }
