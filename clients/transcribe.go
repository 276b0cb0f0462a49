package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callinsight/call-pipeline/transcript"
)

type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job is the recognizer's view of one transcription job.
type Job struct {
	Name          string    `json:"job_name"`
	Status        JobStatus `json:"status"`
	TranscriptURI string    `json:"transcript_uri,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type startJobReq struct {
	JobName           string `json:"job_name"`
	MediaURI          string `json:"media_uri"`
	MediaFormat       string `json:"media_format"`
	LanguageCode      string `json:"language_code"`
	ShowSpeakerLabels bool   `json:"show_speaker_labels"`
	MaxSpeakerLabels  int    `json:"max_speaker_labels"`
}

type TranscribeOptions struct {
	// Bucket, when set, turns file keys into s3://bucket/key media URIs.
	Bucket       string
	MediaFormat  string
	LanguageCode string
	MaxSpeakers  int
}

// Transcribe talks to an asynchronous speech recognition service that
// accepts jobs at /jobs and serves the result document at the job's
// transcript URI.
type Transcribe struct {
	h    *HTTP
	base string
	opts TranscribeOptions
	now  func() time.Time
}

func NewTranscribe(h *HTTP, base string, opts TranscribeOptions) *Transcribe {
	if opts.MediaFormat == "" {
		opts.MediaFormat = "mp3"
	}
	if opts.LanguageCode == "" {
		opts.LanguageCode = "en-US"
	}
	if opts.MaxSpeakers <= 0 {
		opts.MaxSpeakers = 2
	}
	return &Transcribe{h: h, base: strings.TrimRight(base, "/"), opts: opts, now: time.Now}
}

// JobName returns a unique job name of the form Transcription_<unix>_<id>.
func JobName(now time.Time) string {
	return fmt.Sprintf("Transcription_%d_%s", now.Unix(), uuid.NewString()[:8])
}

func (t *Transcribe) mediaURI(fileKey string) string {
	if t.opts.Bucket == "" {
		return fileKey
	}
	return "s3://" + t.opts.Bucket + "/" + strings.TrimLeft(fileKey, "/")
}

// Submit starts a speaker-labelled transcription job and returns its name.
func (t *Transcribe) Submit(ctx context.Context, fileKey string) (string, error) {
	in := startJobReq{
		JobName:           JobName(t.now()),
		MediaURI:          t.mediaURI(fileKey),
		MediaFormat:       t.opts.MediaFormat,
		LanguageCode:      t.opts.LanguageCode,
		ShowSpeakerLabels: true,
		MaxSpeakerLabels:  t.opts.MaxSpeakers,
	}
	var out Job
	if err := t.h.postJSON(ctx, t.base+"/jobs", "transcribe", in, &out); err != nil {
		return "", err
	}
	if out.Name == "" {
		out.Name = in.JobName
	}
	return out.Name, nil
}

func (t *Transcribe) Status(ctx context.Context, job string) (Job, error) {
	var out Job
	if err := t.h.getJSON(ctx, t.base+"/jobs/"+url.PathEscape(job), "transcribe", &out); err != nil {
		return Job{}, err
	}
	if out.Name == "" {
		out.Name = job
	}
	return out, nil
}

// Fetch downloads and decodes the result document of a completed job.
func (t *Transcribe) Fetch(ctx context.Context, transcriptURI string) (*transcript.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transcriptURI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.h.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "transcript fetch", Code: resp.StatusCode}
	}
	raw, err := transcript.ParseTranscribeJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcript decode: %w", err)
	}
	return raw, nil
}
