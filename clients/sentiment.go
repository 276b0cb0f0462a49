package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/callinsight/call-pipeline/sentiment"
)

// --- Sentiment (/detect-sentiment) ---
type SentimentReq struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}
type SentimentScore struct {
	Positive float64 `json:"Positive"`
	Negative float64 `json:"Negative"`
	Neutral  float64 `json:"Neutral"`
	Mixed    float64 `json:"Mixed"`
}
type SentimentResp struct {
	Sentiment      string         `json:"sentiment"`
	SentimentScore SentimentScore `json:"sentiment_score"`
}

// Sentiment classifies text chunks; it satisfies sentiment.Classifier.
type Sentiment struct {
	h    *HTTP
	base string
	lang string
}

func NewSentiment(h *HTTP, base, lang string) *Sentiment {
	if lang == "" {
		lang = "en"
	}
	return &Sentiment{h: h, base: strings.TrimRight(base, "/"), lang: lang}
}

func (s *Sentiment) Classify(ctx context.Context, text string) (sentiment.Classification, error) {
	var out SentimentResp
	err := s.h.postJSON(ctx, s.base+"/detect-sentiment", "sentiment", SentimentReq{Text: text, LanguageCode: s.lang}, &out)
	if err != nil {
		return sentiment.Classification{}, err
	}
	label, err := sentiment.ParseLabel(out.Sentiment)
	if err != nil {
		return sentiment.Classification{}, fmt.Errorf("sentiment decode: %w", err)
	}
	sc := out.SentimentScore
	return sentiment.Classification{
		Label: label,
		Score: sentiment.Score{Positive: sc.Positive, Negative: sc.Negative, Neutral: sc.Neutral, Mixed: sc.Mixed},
	}, nil
}
