package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/callinsight/call-pipeline/sentiment"
)

const resultDoc = `{
  "results": {
    "speaker_labels": {"segments": [
      {"start_time": "0.0", "end_time": "0.5", "speaker_label": "spk_0", "items": [{"start_time": "0.0", "end_time": "0.5"}]},
      {"start_time": "0.6", "end_time": "0.9", "speaker_label": "spk_1", "items": [{"start_time": "0.6", "end_time": "0.9"}]}
    ]},
    "items": [
      {"start_time": "0.0", "end_time": "0.5", "type": "pronunciation", "alternatives": [{"confidence": "0.99", "content": "Hello"}]},
      {"start_time": "0.6", "end_time": "0.9", "type": "pronunciation", "alternatives": [{"confidence": "0.97", "content": "Hi"}]}
    ]
  }
}`

func TestJobName(t *testing.T) {
	name := JobName(time.Unix(1700000000, 0))
	if !regexp.MustCompile(`^Transcription_1700000000_[0-9a-f]{8}$`).MatchString(name) {
		t.Fatalf("job name %q", name)
	}
	if name == JobName(time.Unix(1700000000, 0)) {
		t.Fatal("job names collide within the same second")
	}
}

func TestTranscribeLifecycle(t *testing.T) {
	var submitted startJobReq
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Job{Name: submitted.JobName, Status: JobInProgress})
	})
	mux.HandleFunc("GET /jobs/{name}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Job{
			Name:          r.PathValue("name"),
			Status:        JobCompleted,
			TranscriptURI: srv.URL + "/results/" + r.PathValue("name"),
		})
	})
	mux.HandleFunc("GET /results/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultDoc))
	})

	tc := NewTranscribe(NewHTTP(5*time.Second), srv.URL+"/", TranscribeOptions{Bucket: "recordings"})
	ctx := context.Background()

	name, err := tc.Submit(ctx, "calls/a.mp3")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.MediaURI != "s3://recordings/calls/a.mp3" || !submitted.ShowSpeakerLabels || submitted.MaxSpeakerLabels != 2 {
		t.Errorf("submitted %+v", submitted)
	}
	if !strings.HasPrefix(name, "Transcription_") {
		t.Errorf("job name %q", name)
	}

	job, err := tc.Status(ctx, name)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.Status != JobCompleted {
		t.Fatalf("status = %s", job.Status)
	}

	raw, err := tc.Fetch(ctx, job.TranscriptURI)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw.Items) != 2 || len(raw.Segments) != 2 || raw.Items[1].Content != "Hi" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestTranscribeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 10000), http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewTranscribe(NewHTTP(0), srv.URL, TranscribeOptions{}).Status(context.Background(), "job")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || len(se.Body) > 4096 {
		t.Fatalf("status error = %d with %d body bytes", se.Code, len(se.Body))
	}
}

func TestSentimentClassify(t *testing.T) {
	var got SentimentReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect-sentiment" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"sentiment":"NEGATIVE","sentiment_score":{"Positive":0.01,"Negative":0.93,"Neutral":0.05,"Mixed":0.01}}`))
	}))
	defer srv.Close()

	c, err := NewSentiment(NewHTTP(0), srv.URL, "").Classify(context.Background(), "I am upset")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Text != "I am upset" || got.LanguageCode != "en" {
		t.Errorf("request = %+v", got)
	}
	if c.Label != sentiment.Negative || c.Score.Negative != 0.93 {
		t.Errorf("classification = %+v", c)
	}
}

func TestSentimentUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sentiment":"ANGRY"}`))
	}))
	defer srv.Close()

	if _, err := NewSentiment(NewHTTP(0), srv.URL, "en").Classify(context.Background(), "x"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}
