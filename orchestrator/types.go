package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/callinsight/call-pipeline/clients"
	"github.com/callinsight/call-pipeline/sentiment"
	"github.com/callinsight/call-pipeline/transcript"
)

// Turn is one diarized stretch of speech.
type Turn struct {
	Start float64 // sec
	End   float64 // sec
	Spk   string  // "spk_0"...
}

// Activity aggregates speaking time over [T0, T1].
type Activity struct {
	T0, T1        float64
	Turns         []Turn
	SpeakingShare map[string]float64 // per speaker %
	OverlapRate   float64
}

type Stage string

const (
	StageLookup    Stage = "lookup"
	StageSubmit    Stage = "submit"
	StagePoll      Stage = "poll"
	StageFetch     Stage = "fetch"
	StageSentiment Stage = "sentiment"
	StagePersist   Stage = "persist"
)

var ErrRecognitionJobFailed = errors.New("recognition job failed")

// StageError is a fatal pipeline failure. The whole run may be retried.
type StageError struct {
	FileKey string
	Stage   Stage
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("process %s: %s: %v", e.FileKey, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Recognizer runs asynchronous speech recognition jobs.
type Recognizer interface {
	Submit(ctx context.Context, fileKey string) (string, error)
	Status(ctx context.Context, job string) (clients.Job, error)
	Fetch(ctx context.Context, transcriptURI string) (*transcript.Raw, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, streams map[string]string) (*sentiment.Analysis, error)
}

type RunOptions struct {
	// Force reprocesses a file even when a stored analysis exists.
	Force bool
}
