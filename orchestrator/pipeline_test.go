package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/callinsight/call-pipeline/clients"
	"github.com/callinsight/call-pipeline/narrative"
	"github.com/callinsight/call-pipeline/record"
	"github.com/callinsight/call-pipeline/search"
	"github.com/callinsight/call-pipeline/sentiment"
	"github.com/callinsight/call-pipeline/store"
	"github.com/callinsight/call-pipeline/transcript"
)

var fixed = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func sampleRaw() *transcript.Raw {
	w := func(start, end float64, s string) transcript.RecognitionItem {
		return transcript.RecognitionItem{Kind: transcript.KindWord, Start: start, End: end, Content: s}
	}
	return &transcript.Raw{
		Items: []transcript.RecognitionItem{
			w(0, 0.5, "Hello"),
			{Kind: transcript.KindPunctuation, Content: ","},
			w(0.5, 1, "thanks"),
			w(1, 1.5, "for"),
			w(1.5, 2, "calling"),
			w(2, 2.5, "I"),
			w(2.5, 3, "need"),
			w(3, 3.5, "a"),
			w(3.5, 4, "payment"),
			w(4, 4.5, "plan"),
		},
		Segments: []transcript.DiarizationSegment{
			{SpeakerLabel: "spk_0", Start: 0, End: 2, Items: []transcript.SegmentItem{{Start: 0}, {Start: 0.5}, {Start: 1}, {Start: 1.5}}},
			{SpeakerLabel: "spk_1", Start: 2, End: 4.5, Items: []transcript.SegmentItem{{Start: 2}, {Start: 2.5}, {Start: 3}, {Start: 3.5}, {Start: 4}}},
		},
	}
}

type fakeRecognizer struct {
	mu       sync.Mutex
	statuses []clients.JobStatus
	polls    int
	submits  atomic.Int32
	submitFn func()
	reason   string
}

func (f *fakeRecognizer) Submit(ctx context.Context, fileKey string) (string, error) {
	f.submits.Add(1)
	if f.submitFn != nil {
		f.submitFn()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Transcription_1_abcdef12", nil
}

func (f *fakeRecognizer) Status(ctx context.Context, job string) (clients.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := clients.JobCompleted
	if f.polls < len(f.statuses) {
		st = f.statuses[f.polls]
	}
	f.polls++
	return clients.Job{Name: job, Status: st, TranscriptURI: "mem://" + job, FailureReason: f.reason}, nil
}

func (f *fakeRecognizer) Fetch(ctx context.Context, uri string) (*transcript.Raw, error) {
	return sampleRaw(), nil
}

type labelClassifier struct {
	label sentiment.Label
	err   error
}

func (c labelClassifier) Classify(ctx context.Context, text string) (sentiment.Classification, error) {
	if c.err != nil {
		return sentiment.Classification{}, c.err
	}
	return sentiment.Classification{Label: c.label, Score: sentiment.Score{Positive: 0.9}}, nil
}

type failingNarrative struct{}

func (failingNarrative) Summarize(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
}

func (failingNarrative) ExtractInsights(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
}

type failingStore struct{ store.Store }

func (failingStore) Put(context.Context, string, *record.AnalysisRecord) error {
	return &store.Error{Op: "put", Err: errors.New("disk full")}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return l
}

func newTestPipeline(rec Recognizer, cls sentiment.Classifier, st store.Store) *Pipeline {
	log := quietLogger()
	return NewPipeline(Deps{
		Recognizer:   rec,
		Sentiment:    sentiment.NewAggregator(cls, sentiment.DefaultOptions(), log),
		Narrative:    narrative.Mock{},
		Store:        st,
		Log:          log,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
		Now:          func() time.Time { return fixed },
	})
}

func TestRunStoresRecord(t *testing.T) {
	rec := &fakeRecognizer{statuses: []clients.JobStatus{clients.JobQueued, clients.JobInProgress}}
	st := store.NewMemory()
	idx := search.NewMemory()
	p := newTestPipeline(rec, labelClassifier{label: sentiment.Positive}, st)
	p.d.Index = idx

	got, err := p.Run(context.Background(), "calls/Payment plan.mp3", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.polls != 3 {
		t.Errorf("polls = %d, want 3", rec.polls)
	}
	if got.Filename != "Payment_plan.mp3" || !got.ProcessedAt.Equal(fixed) {
		t.Errorf("metadata = %q %v", got.Filename, got.ProcessedAt)
	}
	if want := "spk_0: Hello, thanks for calling\nspk_1: I need a payment plan"; got.Transcript != want {
		t.Errorf("transcript = %q, want %q", got.Transcript, want)
	}
	if got.SpeakersText["spk_1"] != "I need a payment plan" {
		t.Errorf("speakers text = %q", got.SpeakersText)
	}
	if got.Sentiment != sentiment.Positive || got.SentimentAnalysis.PerSpeaker["spk_1"].DominantSentiment != sentiment.Positive {
		t.Errorf("sentiment = %+v", got.SentimentAnalysis)
	}
	if got.Duration != 4.5 {
		t.Errorf("duration = %v", got.Duration)
	}
	if math.Abs(got.SpeakerRatios["spk_0"]-2.0/4.5*100) > 1e-9 {
		t.Errorf("ratios = %v", got.SpeakerRatios)
	}
	if len(got.Topics) != 1 || got.Topics[0] != "payment" {
		t.Errorf("topics = %v", got.Topics)
	}
	if !bytes.HasPrefix([]byte(got.Summary), []byte("- Main purpose of call")) {
		t.Errorf("summary = %q", got.Summary)
	}

	stored, err := st.Get(context.Background(), "calls/Payment plan.mp3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Transcript != got.Transcript {
		t.Errorf("stored transcript = %q", stored.Transcript)
	}
	hits, _ := idx.Search(context.Background(), "payment plan", 1)
	if len(hits) != 1 || hits[0].FileKey != "calls/Payment plan.mp3" {
		t.Errorf("index hits = %+v", hits)
	}
}

func TestRunReturnsExisting(t *testing.T) {
	st := store.NewMemory()
	existing := record.Assembler{Now: func() time.Time { return fixed }}.Assemble(record.Input{FileKey: "calls/a.mp3", Summary: "old"})
	if err := st.Put(context.Background(), "calls/a.mp3", existing); err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecognizer{}
	p := newTestPipeline(rec, labelClassifier{label: sentiment.Neutral}, st)

	got, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "old" || rec.submits.Load() != 0 {
		t.Fatalf("existing analysis not reused: summary=%q submits=%d", got.Summary, rec.submits.Load())
	}

	got, err = p.Run(context.Background(), "calls/a.mp3", RunOptions{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary == "old" || rec.submits.Load() != 1 {
		t.Fatalf("force did not reprocess: summary=%q submits=%d", got.Summary, rec.submits.Load())
	}
}

func TestRunJobFailed(t *testing.T) {
	st := store.NewMemory()
	rec := &fakeRecognizer{statuses: []clients.JobStatus{clients.JobInProgress, clients.JobFailed}, reason: "unsupported media"}
	p := newTestPipeline(rec, labelClassifier{label: sentiment.Neutral}, st)

	_, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	if !errors.Is(err, ErrRecognitionJobFailed) {
		t.Fatalf("err = %v, want ErrRecognitionJobFailed", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StagePoll || se.FileKey != "calls/a.mp3" {
		t.Fatalf("stage error = %+v", se)
	}
	if _, err := st.Get(context.Background(), "calls/a.mp3"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record persisted after failure: %v", err)
	}
}

func TestRunClassifierFailure(t *testing.T) {
	st := store.NewMemory()
	p := newTestPipeline(&fakeRecognizer{}, labelClassifier{err: errors.New("throttled")}, st)

	_, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	var ce *sentiment.ClassifierError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *sentiment.ClassifierError", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageSentiment {
		t.Fatalf("stage error = %+v", se)
	}
	if _, err := st.Get(context.Background(), "calls/a.mp3"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("record persisted after classifier failure")
	}
}

func TestRunNarrativeDegrades(t *testing.T) {
	p := newTestPipeline(&fakeRecognizer{}, labelClassifier{label: sentiment.Negative}, store.NewMemory())
	p.d.Narrative = failingNarrative{}

	got, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Summary != narrative.SummaryUnavailable || got.Insights != "" || len(got.ActionItems) != 0 {
		t.Fatalf("narrative = %q / %q / %v", got.Summary, got.Insights, got.ActionItems)
	}
}

func TestRunPersistFailure(t *testing.T) {
	p := newTestPipeline(&fakeRecognizer{}, labelClassifier{label: sentiment.Neutral}, failingStore{store.NewMemory()})

	_, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StagePersist {
		t.Fatalf("err = %v", err)
	}
	var stErr *store.Error
	if !errors.As(err, &stErr) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestRunPollTimeout(t *testing.T) {
	statuses := make([]clients.JobStatus, 1000)
	for i := range statuses {
		statuses[i] = clients.JobInProgress
	}
	p := newTestPipeline(&fakeRecognizer{statuses: statuses}, labelClassifier{label: sentiment.Neutral}, store.NewMemory())
	p.d.PollInterval = 5 * time.Millisecond
	p.d.PollTimeout = 20 * time.Millisecond

	_, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRunDeduplicatesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	rec := &fakeRecognizer{}
	rec.submitFn = func() { <-release }
	p := newTestPipeline(rec, labelClassifier{label: sentiment.Neutral}, store.NewMemory())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Run(context.Background(), "calls/a.mp3", RunOptions{})
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if n := rec.submits.Load(); n != 1 {
		t.Fatalf("submits = %d, want 1", n)
	}
}

func TestRunLeaderCancelDoesNotFailJoiners(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	rec := &fakeRecognizer{}
	rec.submitFn = func() {
		close(started)
		<-release
	}
	st := store.NewMemory()
	p := newTestPipeline(rec, labelClassifier{label: sentiment.Neutral}, st)

	ctx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, "calls/a.mp3", RunOptions{})
		leaderErr <- err
	}()
	<-started

	joined := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), "calls/a.mp3", RunOptions{})
		joined <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader err = %v, want context.Canceled", err)
	}
	close(release)
	if err := <-joined; err != nil {
		t.Fatalf("joiner failed with leader's cancellation: %v", err)
	}
	if n := rec.submits.Load(); n != 1 {
		t.Fatalf("submits = %d, want 1", n)
	}
	if _, err := st.Get(context.Background(), "calls/a.mp3"); err != nil {
		t.Fatalf("shared run not persisted: %v", err)
	}
}

func TestActivity(t *testing.T) {
	segs := []transcript.DiarizationSegment{
		{SpeakerLabel: "spk_1", Start: 4, End: 10},
		{SpeakerLabel: "spk_0", Start: 0, End: 5},
		{SpeakerLabel: "spk_0", Start: 10, End: 10}, // empty
	}
	a := activity(turns(segs))
	if a.T0 != 0 || a.T1 != 10 {
		t.Fatalf("span = [%v, %v]", a.T0, a.T1)
	}
	if math.Abs(a.SpeakingShare["spk_0"]-5.0/11*100) > 1e-9 || math.Abs(a.SpeakingShare["spk_1"]-6.0/11*100) > 1e-9 {
		t.Errorf("share = %v", a.SpeakingShare)
	}
	if math.Abs(a.OverlapRate-0.1) > 1e-9 {
		t.Errorf("overlap = %v, want 0.1", a.OverlapRate)
	}

	back := activity(turns([]transcript.DiarizationSegment{
		{SpeakerLabel: "spk_0", Start: 0, End: 2},
		{SpeakerLabel: "spk_1", Start: 2, End: 4},
	}))
	if back.OverlapRate != 0 {
		t.Errorf("back-to-back turns overlap = %v", back.OverlapRate)
	}
	if empty := activity(nil); len(empty.SpeakingShare) != 0 || empty.OverlapRate != 0 {
		t.Errorf("empty activity = %+v", empty)
	}
}
