// Package record assembles and serializes the persisted analysis of one call.
package record

import (
	"time"

	"github.com/callinsight/call-pipeline/insights"
	"github.com/callinsight/call-pipeline/sentiment"
)

// RequiredSpeakers always have an entry in SpeakersText and PerSpeaker.
var RequiredSpeakers = []string{"spk_0", "spk_1"}

type AnalysisRecord struct {
	FileKey           string                `json:"file_key"`
	Filename          string                `json:"filename"`
	Transcript        string                `json:"transcript"`
	Speakers          []string              `json:"speakers"`
	SpeakersText      map[string]string     `json:"speakers_text"`
	Sentiment         sentiment.Label       `json:"sentiment"`
	SentimentAnalysis sentiment.Analysis    `json:"sentiment_analysis"`
	Summary           string                `json:"summary"`
	Insights          string                `json:"insights"`
	ActionItems       []string              `json:"action_items"`
	CustomerInfo      insights.CustomerInfo `json:"customer_info"`
	Topics            []string              `json:"topics_discussed"`
	SpeakerRatios     map[string]float64    `json:"speaker_ratios"`
	OverlapRate       float64               `json:"overlap_rate"`
	Duration          float64               `json:"duration"`
	ProcessedAt       time.Time             `json:"processed_date"`
}

// Summary is the listing view of a stored record.
type Summary struct {
	FileKey     string          `json:"file_key"`
	Filename    string          `json:"filename"`
	Sentiment   sentiment.Label `json:"sentiment"`
	Duration    float64         `json:"duration"`
	ProcessedAt time.Time       `json:"processed_date"`
}

func (r *AnalysisRecord) Summarize() Summary {
	return Summary{
		FileKey:     r.FileKey,
		Filename:    r.Filename,
		Sentiment:   r.Sentiment,
		Duration:    r.Duration,
		ProcessedAt: r.ProcessedAt,
	}
}
