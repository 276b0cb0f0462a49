package search

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	maxKeyLen     = 512
	maxSummaryLen = 4096
)

type MilvusOptions struct {
	Addr       string
	Username   string
	Password   string
	APIKey     string
	Collection string
	Dim        int
}

// Milvus stores one vector per call keyed by file key.
type Milvus struct {
	mc   client.Client
	coll string
	dim  int
	emb  Embedder
}

func NewMilvus(ctx context.Context, opts MilvusOptions, emb Embedder) (*Milvus, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "call_summaries"
	}
	if opts.Dim <= 0 {
		opts.Dim = 1536
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		APIKey:   opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &Milvus{mc: mc, coll: opts.Collection, dim: opts.Dim, emb: emb}
	if err := s.ensureCollection(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *Milvus) ensureCollection(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll).WithDescription("analysed call summaries")
		schema.WithField(entity.NewField().WithName("file_key").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxKeyLen))
		schema.WithField(entity.NewField().WithName("filename").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxKeyLen))
		schema.WithField(entity.NewField().WithName("summary").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxSummaryLen))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("new hnsw index: %w", err)
		}
		if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *Milvus) Upsert(ctx context.Context, doc Document) error {
	v, err := s.emb.Embed(ctx, doc.Text)
	if err != nil {
		return err
	}
	_, err = s.mc.Upsert(ctx, s.coll, "",
		entity.NewColumnVarChar("file_key", []string{truncate(doc.FileKey, maxKeyLen)}),
		entity.NewColumnVarChar("filename", []string{truncate(doc.Filename, maxKeyLen)}),
		entity.NewColumnVarChar("summary", []string{truncate(doc.Summary, maxSummaryLen)}),
		entity.NewColumnFloatVector("vector", s.dim, [][]float32{v}),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert %q: %w", doc.FileKey, err)
	}
	return nil
}

func (s *Milvus) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	v, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, "", []string{"file_key", "filename", "summary"},
		[]entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}
	var hits []Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		str := func(name string, i int) string {
			if c, ok := cols[name].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					return data[i]
				}
			}
			return ""
		}
		for i := 0; i < r.ResultCount; i++ {
			key := str("file_key", i)
			if key == "" {
				if c, ok := r.IDs.(*entity.ColumnVarChar); ok && i < c.Len() {
					key = c.Data()[i]
				}
			}
			hits = append(hits, Hit{
				FileKey:  key,
				Filename: str("filename", i),
				Summary:  str("summary", i),
				Score:    float64(r.Scores[i]),
			})
		}
	}
	return hits, nil
}

func (s *Milvus) Close() error { return s.mc.Close() }
