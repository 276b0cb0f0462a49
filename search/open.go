package search

import (
	"context"
	"fmt"

	"github.com/callinsight/call-pipeline/config"
)

// Open builds the index named by cfg.Search.Backend. It returns a nil Index
// when search is disabled.
func Open(ctx context.Context, cfg *config.Root) (Index, error) {
	switch cfg.Search.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("search backend %q needs llm.api_key for embeddings", cfg.Search.Backend)
	}
	emb := NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.EmbeddingModel)
	switch cfg.Search.Backend {
	case "pgvector":
		return NewPgVector(ctx, cfg.Search.PostgresURL, cfg.Search.Table, cfg.Search.Dim, emb)
	case "milvus":
		return NewMilvus(ctx, MilvusOptions{
			Addr:       cfg.Search.MilvusAddr,
			Username:   cfg.Search.MilvusUsername,
			Password:   cfg.Search.MilvusPassword,
			APIKey:     cfg.Search.MilvusAPIKey,
			Collection: cfg.Search.Collection,
			Dim:        cfg.Search.Dim,
		}, emb)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}
}
