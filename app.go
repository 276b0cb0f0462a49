package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/callinsight/call-pipeline/clients"
	"github.com/callinsight/call-pipeline/config"
	"github.com/callinsight/call-pipeline/narrative"
	"github.com/callinsight/call-pipeline/objects"
	"github.com/callinsight/call-pipeline/orchestrator"
	"github.com/callinsight/call-pipeline/search"
	"github.com/callinsight/call-pipeline/sentiment"
	"github.com/callinsight/call-pipeline/store"
)

type app struct {
	cfg     *config.Root
	log     *logrus.Logger
	store   store.Store
	index   search.Index
	objects *objects.Dir
}

func newApp(ctx context.Context, cfgPath string, log *logrus.Logger) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	lvl, err := logrus.ParseLevel(cfg.Pipeline.LogLvl)
	if err != nil {
		return nil, fmt.Errorf("pipeline.log_level: %w", err)
	}
	log.SetLevel(lvl)

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	idx, err := search.Open(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	objs, err := objects.NewDir(cfg.Objects.Root, cfg.Objects.Prefix)
	if err != nil {
		st.Close()
		if idx != nil {
			idx.Close()
		}
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: st, index: idx, objects: objs}, nil
}

func (a *app) Close() error {
	err := a.store.Close()
	if a.index != nil {
		err = errors.Join(err, a.index.Close())
	}
	return err
}

func (a *app) pipeline() (*orchestrator.Pipeline, error) {
	c := a.cfg
	if c.Services.Transcribe.URL == "" {
		return nil, errors.New("services.transcribe.url is not configured")
	}
	if c.Services.Sentiment.URL == "" {
		return nil, errors.New("services.sentiment.url is not configured")
	}

	rec := clients.NewTranscribe(clients.NewHTTP(config.DurSeconds(c.Services.Transcribe.TimeoutSeconds)),
		c.Services.Transcribe.URL, clients.TranscribeOptions{
			Bucket:       c.Transcription.Bucket,
			MediaFormat:  c.Transcription.MediaFormat,
			LanguageCode: c.Transcription.LanguageCode,
			MaxSpeakers:  c.Transcription.MaxSpeakers,
		})
	cls := clients.NewSentiment(clients.NewHTTP(config.DurSeconds(c.Services.Sentiment.TimeoutSeconds)),
		c.Services.Sentiment.URL, c.Sentiment.LanguageCode)

	roles := map[string]sentiment.Role{}
	for spk, role := range c.Sentiment.Roles {
		roles[spk] = sentiment.Role(role)
	}
	agg := sentiment.NewAggregator(cls, sentiment.Options{MaxChunkSize: c.Sentiment.MaxChunkSize, Roles: roles}, a.log)

	var gen narrative.Generator = narrative.Mock{}
	if c.LLM.Provider == "openai" {
		gen = narrative.NewOpenAI(narrative.OpenAIOptions{
			APIKey:            c.LLM.APIKey,
			BaseURL:           c.LLM.BaseURL,
			Model:             c.LLM.ChatModel,
			SummaryMaxTokens:  c.LLM.SummaryMaxTokens,
			InsightsMaxTokens: c.LLM.InsightsMaxTokens,
			Temperature:       *c.LLM.Temperature,
			TopP:              *c.LLM.TopP,
		}, a.log)
	}

	return orchestrator.NewPipeline(orchestrator.Deps{
		Recognizer:   rec,
		Sentiment:    agg,
		Narrative:    gen,
		Store:        a.store,
		Index:        a.index,
		Log:          a.log,
		PollInterval: c.Polling.Interval(),
		PollTimeout:  c.Polling.Timeout(),
	}), nil
}

// reindex feeds every stored analysis to the search index.
func (a *app) reindex(ctx context.Context) error {
	sums, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range sums {
		rec, err := a.store.Get(ctx, s.FileKey)
		if err != nil {
			return err
		}
		if err := a.index.Upsert(ctx, search.DocumentFromRecord(rec)); err != nil {
			return err
		}
	}
	a.log.WithField("documents", len(sums)).Debug("search index rebuilt")
	return nil
}
