// Package search indexes analysed calls for similarity lookup by free text.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/callinsight/call-pipeline/record"
)

// maxEmbedChars bounds the text sent for embedding.
const maxEmbedChars = 8000

type Document struct {
	FileKey  string
	Filename string
	Summary  string
	Text     string
}

type Hit struct {
	FileKey  string  `json:"file_key"`
	Filename string  `json:"filename"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
}

// Index holds one document per file key; Upsert replaces it.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Search(ctx context.Context, query string, topK int) ([]Hit, error)
	Close() error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentFromRecord indexes a call by its summary and transcript.
func DocumentFromRecord(r *record.AnalysisRecord) Document {
	return Document{
		FileKey:  r.FileKey,
		Filename: r.Filename,
		Summary:  r.Summary,
		Text:     r.Summary + "\n" + r.Transcript,
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].FileKey < hits[j].FileKey
	})
}

type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{cli: openai.NewClientWithConfig(cfg), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{strings.ToLower(truncate(text, maxEmbedChars))},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: no data returned")
	}
	return resp.Data[0].Embedding, nil
}
