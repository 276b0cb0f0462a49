package record

import "github.com/callinsight/call-pipeline/sentiment"

func fallbackSpeaker() sentiment.SpeakerSummary {
	return sentiment.SpeakerSummary{
		DominantSentiment: sentiment.Neutral,
		SentimentCounts:   sentiment.NewCounts(),
		ToneSummary:       sentiment.ToneUnavailable,
	}
}

// DefaultSentimentAnalysis is the structure stored when no usable sentiment
// analysis exists.
func DefaultSentimentAnalysis() sentiment.Analysis {
	a := sentiment.Analysis{
		PerSpeaker:       map[string]sentiment.SpeakerSummary{},
		Timeline:         []sentiment.TimelineEntry{},
		OverallSentiment: sentiment.Neutral,
	}
	for _, spk := range RequiredSpeakers {
		a.PerSpeaker[spk] = fallbackSpeaker()
	}
	return a
}

// normalizeSentiment returns a copy of a with every required substructure
// present and every label valid. A nil input yields the defaults.
func normalizeSentiment(a *sentiment.Analysis) sentiment.Analysis {
	out := DefaultSentimentAnalysis()
	if a == nil {
		return out
	}

	for spk, s := range a.PerSpeaker {
		n := sentiment.SpeakerSummary{
			DominantSentiment: s.DominantSentiment,
			SentimentCounts:   sentiment.NewCounts(),
			ToneSummary:       s.ToneSummary,
		}
		if !n.DominantSentiment.Valid() {
			n.DominantSentiment = sentiment.Neutral
		}
		for l, c := range s.SentimentCounts {
			if l.Valid() && c > 0 {
				n.SentimentCounts[l] = c
			}
		}
		if n.ToneSummary == "" {
			n.ToneSummary = sentiment.ToneUnavailable
		}
		if len(s.ToneShifts) > 0 {
			n.ToneShifts = append([]string(nil), s.ToneShifts...)
		}
		out.PerSpeaker[spk] = n
	}

	for _, e := range a.Timeline {
		if e.Sentiment.Valid() {
			out.Timeline = append(out.Timeline, e)
		}
	}
	if a.OverallSentiment.Valid() {
		out.OverallSentiment = a.OverallSentiment
	}
	return out
}

// Normalize fills every missing substructure of r in place.
func Normalize(r *AnalysisRecord) {
	r.SentimentAnalysis = normalizeSentiment(&r.SentimentAnalysis)
	r.Sentiment = r.SentimentAnalysis.OverallSentiment

	if r.SpeakersText == nil {
		r.SpeakersText = map[string]string{}
	}
	for _, spk := range RequiredSpeakers {
		if _, ok := r.SpeakersText[spk]; !ok {
			r.SpeakersText[spk] = ""
		}
	}
	if r.Speakers == nil {
		r.Speakers = []string{}
	}
	if r.ActionItems == nil {
		r.ActionItems = []string{}
	}
	if r.Topics == nil {
		r.Topics = []string{}
	}
	if r.SpeakerRatios == nil {
		r.SpeakerRatios = map[string]float64{}
	}
}
