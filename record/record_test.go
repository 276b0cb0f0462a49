package record

import (
	"bytes"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/callinsight/call-pipeline/insights"
	"github.com/callinsight/call-pipeline/sentiment"
	"github.com/callinsight/call-pipeline/transcript"
)

var fixed = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixed }

func sampleInput() Input {
	items := []transcript.RecognitionItem{
		{Kind: transcript.KindWord, Start: 0, End: 0.5, Content: "Hello"},
		{Kind: transcript.KindWord, Start: 0.5, End: 1.25, Content: "Hi"},
	}
	segs := []transcript.DiarizationSegment{
		{SpeakerLabel: "spk_0", Items: []transcript.SegmentItem{{Start: 0}}},
		{SpeakerLabel: "spk_1", Items: []transcript.SegmentItem{{Start: 0.5}}},
	}
	return Input{
		FileKey:    "calls/March call 1.mp3",
		Transcript: transcript.Normalize(items, segs),
		Sentiment: &sentiment.Analysis{
			PerSpeaker: map[string]sentiment.SpeakerSummary{
				"spk_0": {DominantSentiment: sentiment.Positive, SentimentCounts: sentiment.Counts{sentiment.Positive: 1}, ToneSummary: "warm"},
			},
			Timeline:         []sentiment.TimelineEntry{{Speaker: "spk_0", Sentiment: sentiment.Positive, Score: sentiment.Score{Positive: 0.91}}},
			OverallSentiment: sentiment.Positive,
		},
		Summary:       "- Purpose: payment plan",
		Insights:      "ACTIONS FOR BANK EMPLOYEE:\n- Send statement",
		ActionItems:   []string{"Send statement"},
		CustomerInfo:  insights.CustomerInfo{AccountMentioned: true},
		Topics:        []string{"payment"},
		SpeakerRatios: map[string]float64{"spk_0": 100.0 / 3, "spk_1": 200.0 / 3},
		OverlapRate:   0.1,
	}
}

func TestAssembleDefaults(t *testing.T) {
	r := Assembler{Now: fixedClock}.Assemble(Input{FileKey: "calls/a.mp3"})

	for _, spk := range RequiredSpeakers {
		s, ok := r.SentimentAnalysis.PerSpeaker[spk]
		if !ok {
			t.Fatalf("per_speaker.%s missing", spk)
		}
		if s.ToneSummary != sentiment.ToneUnavailable || s.DominantSentiment != sentiment.Neutral {
			t.Errorf("%s fallback = %+v", spk, s)
		}
		if len(s.SentimentCounts) != 4 {
			t.Errorf("%s counts not zero-filled: %v", spk, s.SentimentCounts)
		}
		if _, ok := r.SpeakersText[spk]; !ok {
			t.Errorf("speakers_text.%s missing", spk)
		}
	}
	if r.SentimentAnalysis.Timeline == nil || len(r.SentimentAnalysis.Timeline) != 0 {
		t.Errorf("timeline = %#v", r.SentimentAnalysis.Timeline)
	}
	if r.SentimentAnalysis.OverallSentiment != sentiment.Neutral || r.Sentiment != sentiment.Neutral {
		t.Errorf("overall = %s / %s", r.SentimentAnalysis.OverallSentiment, r.Sentiment)
	}
	if r.Summary != "" || r.Insights != "" || r.ActionItems == nil || r.Topics == nil {
		t.Errorf("unexpected narrative fields: %+v", r)
	}
	if r.Filename != "a.mp3" || !r.ProcessedAt.Equal(fixed) {
		t.Errorf("filename=%q processed=%v", r.Filename, r.ProcessedAt)
	}
}

func TestAssembleFillsMissingSpeaker(t *testing.T) {
	r := Assembler{Now: fixedClock}.Assemble(sampleInput())

	if got := r.SentimentAnalysis.PerSpeaker["spk_0"]; got.ToneSummary != "warm" || got.SentimentCounts[sentiment.Negative] != 0 {
		t.Errorf("spk_0 = %+v", got)
	}
	if got := r.SentimentAnalysis.PerSpeaker["spk_1"]; got.ToneSummary != sentiment.ToneUnavailable {
		t.Errorf("spk_1 = %+v", got)
	}
	if r.Transcript != "spk_0: Hello\nspk_1: Hi" {
		t.Errorf("transcript = %q", r.Transcript)
	}
	if r.Duration != 1.25 || r.Filename != "March_call_1.mp3" || r.Sentiment != sentiment.Positive {
		t.Errorf("record = %+v", r)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	a, err := Marshal(Assembler{Now: fixedClock}.Assemble(sampleInput()))
	if err != nil {
		t.Fatal(err)
	}
	later := Assembler{Now: func() time.Time { return fixed.Add(time.Hour) }}.Assemble(sampleInput())
	later.ProcessedAt = fixed
	b, err := Marshal(later)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("assemble not deterministic:\n%s\n%s", a, b)
	}
}

func TestAssembleCopiesInput(t *testing.T) {
	in := sampleInput()
	r := Assembler{Now: fixedClock}.Assemble(in)
	in.Topics[0] = "changed"
	in.SpeakerRatios["spk_0"] = 0
	in.Sentiment.PerSpeaker["spk_0"] = sentiment.SpeakerSummary{}
	if r.Topics[0] != "payment" || r.SpeakerRatios["spk_0"] == 0 || r.SentimentAnalysis.PerSpeaker["spk_0"].ToneSummary != "warm" {
		t.Error("record aliases caller data")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := Assembler{Now: fixedClock}.Assemble(sampleInput())
	in.Duration = 1234.5678901234567
	b, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out, malformed, err := Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if malformed {
		t.Error("well-formed record reported malformed")
	}
	if !out.ProcessedAt.Equal(in.ProcessedAt) {
		t.Errorf("processed_date %v != %v", out.ProcessedAt, in.ProcessedAt)
	}
	out.ProcessedAt, in.ProcessedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", in, out)
	}
}

func TestUnmarshalRecoversMalformedSentiment(t *testing.T) {
	docs := map[string]string{
		"string":      `{"file_key":"k","sentiment_analysis":"not json"}`,
		"wrong shape": `{"file_key":"k","sentiment_analysis":{"per_speaker":[1,2]}}`,
		"bad label":   `{"file_key":"k","sentiment":"ANGRY","sentiment_analysis":{"overall_sentiment":"ANGRY"}}`,
		"missing":     `{"file_key":"k"}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			r, malformed, err := Unmarshal([]byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			if !malformed {
				t.Error("expected malformed flag")
			}
			if !reflect.DeepEqual(r.SentimentAnalysis, DefaultSentimentAnalysis()) {
				t.Errorf("sentiment = %+v", r.SentimentAnalysis)
			}
			if r.Sentiment != sentiment.Neutral {
				t.Errorf("sentiment = %s", r.Sentiment)
			}
		})
	}
}

func TestDecodeSentimentAnalysisFromString(t *testing.T) {
	a, ok := DecodeSentimentAnalysis([]byte(`"{\"overall_sentiment\":\"MIXED\"}"`))
	if !ok || a.OverallSentiment != sentiment.Mixed {
		t.Errorf("got %+v ok=%v", a, ok)
	}
	if _, ok := a.PerSpeaker["spk_1"]; !ok {
		t.Error("defaults not applied")
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	values := []float64{0, 1.0, 0.1, 1.0 / 3, 1e-9, 123456.789, math.MaxFloat32, 4.35}
	for i := 0; i < 500; i++ {
		values = append(values, r.Float64()*math.Pow(10, float64(r.Intn(12)-4)))
	}
	for _, f := range values {
		got, err := ParseDecimal(ToDecimal(f).String())
		if err != nil {
			t.Fatal(err)
		}
		if got != f {
			t.Fatalf("round trip %v -> %s -> %v", f, ToDecimal(f).String(), got)
		}
	}
	if !ToDecimal(math.NaN()).IsZero() {
		t.Error("NaN should map to zero")
	}
}
