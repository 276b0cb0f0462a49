package record

import (
	"path"
	"time"

	"github.com/callinsight/call-pipeline/insights"
	"github.com/callinsight/call-pipeline/sentiment"
	"github.com/callinsight/call-pipeline/transcript"
)

// Input gathers everything the pipeline produced for one file. Any field
// may be empty; Assemble substitutes defaults.
type Input struct {
	FileKey       string
	Transcript    *transcript.Result
	Sentiment     *sentiment.Analysis
	Summary       string
	Insights      string
	ActionItems   []string
	CustomerInfo  insights.CustomerInfo
	Topics        []string
	SpeakerRatios map[string]float64
	OverlapRate   float64
}

type Assembler struct {
	Now func() time.Time
}

// Assemble builds a complete record stamped with the current time.
func Assemble(in Input) *AnalysisRecord {
	return Assembler{}.Assemble(in)
}

func (a Assembler) Assemble(in Input) *AnalysisRecord {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	r := &AnalysisRecord{
		FileKey:      in.FileKey,
		Filename:     insights.CleanFilename(path.Base(in.FileKey)),
		Summary:      in.Summary,
		Insights:     in.Insights,
		ActionItems:  append([]string(nil), in.ActionItems...),
		CustomerInfo: in.CustomerInfo,
		Topics:       append([]string(nil), in.Topics...),
		OverlapRate:  in.OverlapRate,
		ProcessedAt:  now().UTC(),
	}
	if in.FileKey == "" {
		r.Filename = ""
	}
	if in.SpeakerRatios != nil {
		r.SpeakerRatios = make(map[string]float64, len(in.SpeakerRatios))
		for k, v := range in.SpeakerRatios {
			r.SpeakerRatios[k] = v
		}
	}
	if t := in.Transcript; t != nil {
		r.Transcript = transcript.FormatForStorage(t.Text())
		r.Speakers = append([]string(nil), t.Speakers...)
		r.Duration = t.Duration
		r.SpeakersText = make(map[string]string, len(t.Streams))
		for k, v := range t.Streams {
			r.SpeakersText[k] = v
		}
	}
	r.SentimentAnalysis = normalizeSentiment(in.Sentiment)
	Normalize(r)
	return r
}
