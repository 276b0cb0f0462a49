package sentiment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// secondsPerWord approximates speaking pace when placing chunks on the timeline.
const secondsPerWord = 0.3

type Score struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Mixed    float64 `json:"mixed"`
}

type Classification struct {
	Label Label
	Score Score
}

// Classifier scores one chunk of at most the configured chunk size.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

type SpeakerSummary struct {
	DominantSentiment Label    `json:"dominant_sentiment"`
	SentimentCounts   Counts   `json:"sentiment_counts"`
	ToneSummary       string   `json:"tone_summary"`
	ToneShifts        []string `json:"tone_shifts,omitempty"`
}

type TimelineEntry struct {
	Timestamp float64 `json:"timestamp"`
	Speaker   string  `json:"speaker"`
	Sentiment Label   `json:"sentiment"`
	Score     Score   `json:"score"`
}

type Analysis struct {
	PerSpeaker       map[string]SpeakerSummary `json:"per_speaker"`
	Timeline         []TimelineEntry           `json:"timeline"`
	OverallSentiment Label                     `json:"overall_sentiment"`
}

type ClassifierError struct {
	Speaker string
	Chunk   int
	Err     error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classify %s chunk %d: %v", e.Speaker, e.Chunk, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

type Options struct {
	MaxChunkSize int
	// Roles maps speaker labels to roles for tone templates.
	Roles map[string]Role
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize: DefaultMaxChunkSize,
		Roles:        map[string]Role{"spk_0": RoleAgent, "spk_1": RoleCustomer},
	}
}

type Aggregator struct {
	classifier Classifier
	opts       Options
	log        logrus.FieldLogger
}

func NewAggregator(c Classifier, opts Options, log logrus.FieldLogger) *Aggregator {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.Roles == nil {
		opts.Roles = DefaultOptions().Roles
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{classifier: c, opts: opts, log: log}
}

// Analyze classifies every speaker's text chunk by chunk, one call at a time,
// and reduces the labels. The first classifier error aborts the analysis.
func (a *Aggregator) Analyze(ctx context.Context, streams map[string]string) (*Analysis, error) {
	speakers := make([]string, 0, len(streams))
	for spk := range streams {
		speakers = append(speakers, spk)
	}
	sort.Strings(speakers)

	out := &Analysis{
		PerSpeaker: map[string]SpeakerSummary{},
		Timeline:   []TimelineEntry{},
	}
	var all []Label

	for _, spk := range speakers {
		text := streams[spk]
		var labels []Label
		ts := 0.0
		for i, chunk := range Chunk(text, a.opts.MaxChunkSize) {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			c, err := a.classifier.Classify(ctx, chunk)
			if err != nil {
				return nil, &ClassifierError{Speaker: spk, Chunk: i, Err: err}
			}
			labels = append(labels, c.Label)
			out.Timeline = append(out.Timeline, TimelineEntry{Timestamp: ts, Speaker: spk, Sentiment: c.Label, Score: c.Score})
			ts += float64(len(strings.Fields(chunk))) * secondsPerWord
		}
		if len(labels) == 0 {
			continue
		}

		counts := CountLabels(labels)
		dominant := counts.Dominant()
		shifts := ToneShifts(labels)
		out.PerSpeaker[spk] = SpeakerSummary{
			DominantSentiment: dominant,
			SentimentCounts:   counts,
			ToneSummary:       ToneSummary(a.opts.Roles[spk], dominant, text, shifts),
			ToneShifts:        shifts,
		}
		all = append(all, labels...)
		a.log.WithFields(logrus.Fields{"speaker": spk, "chunks": len(labels), "dominant": dominant}).Debug("speaker sentiment")
	}

	out.OverallSentiment = Overall(all)
	return out, nil
}
