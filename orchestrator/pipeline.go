// Package orchestrator drives one recording through recognition, sentiment
// analysis, narrative generation and persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/callinsight/call-pipeline/clients"
	"github.com/callinsight/call-pipeline/insights"
	"github.com/callinsight/call-pipeline/narrative"
	"github.com/callinsight/call-pipeline/record"
	"github.com/callinsight/call-pipeline/search"
	"github.com/callinsight/call-pipeline/store"
	"github.com/callinsight/call-pipeline/transcript"
)

type Deps struct {
	Recognizer Recognizer
	Sentiment  Analyzer
	Narrative  narrative.Generator
	Store      store.Store
	// Index is optional.
	Index search.Index
	Log   logrus.FieldLogger

	PollInterval time.Duration
	PollTimeout  time.Duration
	Now          func() time.Time
}

type Pipeline struct {
	d     Deps
	asm   record.Assembler
	group singleflight.Group
}

func NewPipeline(d Deps) *Pipeline {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 10 * time.Second
	}
	if d.PollTimeout <= 0 {
		d.PollTimeout = time.Hour
	}
	if d.Narrative == nil {
		d.Narrative = narrative.Mock{}
	}
	return &Pipeline{d: d, asm: record.Assembler{Now: d.Now}}
}

// Run processes one file and returns its stored analysis. Concurrent calls
// for the same key share a single run and its result. The shared run does
// not inherit cancellation from whichever caller started it; it is bounded
// by the poll timeout and client timeouts instead. A caller whose ctx ends
// stops waiting and gets ctx.Err() while the run carries on for the others.
func (p *Pipeline) Run(ctx context.Context, fileKey string, opts RunOptions) (*record.AnalysisRecord, error) {
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(fileKey, func() (any, error) {
		return p.run(shared, fileKey, opts)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			p.d.Log.WithField("file_key", fileKey).Debug("joined in-flight run")
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*record.AnalysisRecord), nil
	}
}

func (p *Pipeline) run(ctx context.Context, fileKey string, opts RunOptions) (*record.AnalysisRecord, error) {
	log := p.d.Log.WithField("file_key", fileKey)
	fail := func(stage Stage, err error) error {
		log.WithError(err).WithField("stage", stage).Error("pipeline failed")
		return &StageError{FileKey: fileKey, Stage: stage, Err: err}
	}

	if !opts.Force {
		existing, err := p.d.Store.Get(ctx, fileKey)
		switch {
		case err == nil:
			log.Info("analysis already exists")
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fail(StageLookup, err)
		}
	}

	log.WithField("stage", StageSubmit).Info("starting transcription")
	jobName, err := p.d.Recognizer.Submit(ctx, fileKey)
	if err != nil {
		return nil, fail(StageSubmit, err)
	}

	job, err := p.await(ctx, log.WithField("job", jobName), jobName)
	if err != nil {
		return nil, fail(StagePoll, err)
	}

	log.WithField("stage", StageFetch).Info("fetching transcription result")
	raw, err := p.d.Recognizer.Fetch(ctx, job.TranscriptURI)
	if err != nil {
		return nil, fail(StageFetch, err)
	}
	res := transcript.Normalize(raw.Items, raw.Segments)

	log.WithFields(logrus.Fields{"stage": StageSentiment, "speakers": len(res.Speakers)}).Info("analyzing sentiment")
	sa, err := p.d.Sentiment.Analyze(ctx, res.Streams)
	if err != nil {
		return nil, fail(StageSentiment, err)
	}

	text := res.Text()
	act := activity(turns(raw.Segments))

	summary, err := p.d.Narrative.Summarize(ctx, text)
	if err != nil {
		log.WithError(err).Warn("summary unavailable")
		summary = narrative.SummaryUnavailable
	}
	insightText, err := p.d.Narrative.ExtractInsights(ctx, text)
	if err != nil {
		log.WithError(err).Warn("insights unavailable")
		insightText = ""
	}

	rec := p.asm.Assemble(record.Input{
		FileKey:       fileKey,
		Transcript:    res,
		Sentiment:     sa,
		Summary:       summary,
		Insights:      insightText,
		ActionItems:   insights.ParseActionItems(insightText),
		CustomerInfo:  insights.ExtractCustomerInfo(text),
		Topics:        insights.ExtractTopics(text),
		SpeakerRatios: act.SpeakingShare,
		OverlapRate:   act.OverlapRate,
	})

	if err := p.d.Store.Put(ctx, fileKey, rec); err != nil {
		return nil, fail(StagePersist, err)
	}
	log.WithFields(logrus.Fields{
		"stage":     StagePersist,
		"sentiment": rec.Sentiment,
		"duration":  rec.Duration,
	}).Info("analysis stored")

	if p.d.Index != nil {
		if err := p.d.Index.Upsert(ctx, search.DocumentFromRecord(rec)); err != nil {
			log.WithError(err).Warn("search indexing failed")
		}
	}
	return rec, nil
}

// await polls the job until it reaches a terminal state or the poll
// timeout expires.
func (p *Pipeline) await(ctx context.Context, log logrus.FieldLogger, jobName string) (clients.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, p.d.PollTimeout)
	defer cancel()
	tick := time.NewTicker(p.d.PollInterval)
	defer tick.Stop()

	for {
		job, err := p.d.Recognizer.Status(ctx, jobName)
		if err != nil {
			return clients.Job{}, err
		}
		switch job.Status {
		case clients.JobCompleted:
			return job, nil
		case clients.JobFailed:
			if job.FailureReason != "" {
				return job, fmt.Errorf("%w: %s", ErrRecognitionJobFailed, job.FailureReason)
			}
			return job, ErrRecognitionJobFailed
		}
		log.WithField("status", job.Status).Debug("transcription in progress")

		select {
		case <-ctx.Done():
			return clients.Job{}, fmt.Errorf("waiting for job %s: %w", jobName, ctx.Err())
		case <-tick.C:
		}
	}
}
