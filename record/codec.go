package record

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/callinsight/call-pipeline/sentiment"
)

// Marshal encodes a record. Floats use the shortest representation that
// parses back to the same value, so decimal-backed stores keep them exact.
func Marshal(r *AnalysisRecord) ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes a stored record. A sentiment analysis that is not the
// expected shape is replaced with defaults; the second return reports it.
func Unmarshal(b []byte) (*AnalysisRecord, bool, error) {
	type alias AnalysisRecord
	aux := struct {
		*alias
		Sentiment         json.RawMessage `json:"sentiment"`
		SentimentAnalysis json.RawMessage `json:"sentiment_analysis"`
	}{alias: &alias{}}
	if err := json.Unmarshal(b, &aux); err != nil {
		return nil, false, fmt.Errorf("record decode: %w", err)
	}
	r := (*AnalysisRecord)(aux.alias)
	sa, ok := DecodeSentimentAnalysis(aux.SentimentAnalysis)
	r.SentimentAnalysis = sa
	Normalize(r)
	return r, !ok, nil
}

// DecodeSentimentAnalysis parses a sentiment payload, also accepting one that
// was stored as a JSON string. Anything malformed yields the defaults and
// false.
func DecodeSentimentAnalysis(raw json.RawMessage) (sentiment.Analysis, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultSentimentAnalysis(), false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var a sentiment.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return DefaultSentimentAnalysis(), false
	}
	return normalizeSentiment(&a), true
}

// ToDecimal converts a float to an exact decimal; non-finite values become zero.
func ToDecimal(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// FromDecimal returns the float nearest to d.
func FromDecimal(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ParseDecimal parses a decimal string as produced by a NUMERIC column.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("decimal %q: %w", s, err)
	}
	return FromDecimal(d), nil
}
