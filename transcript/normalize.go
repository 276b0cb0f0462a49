package transcript

import "sort"

// SpeakerTimeMap resolves a word start time to the speaker active at it.
type SpeakerTimeMap map[float64]string

// BuildSpeakerTimeMap indexes every segment item by start time. Segments are
// applied in order, so a later segment overwrites an earlier one on collision.
func BuildSpeakerTimeMap(segments []DiarizationSegment) SpeakerTimeMap {
	m := SpeakerTimeMap{}
	for _, seg := range segments {
		for _, it := range seg.Items {
			m[it.Start] = seg.SpeakerLabel
		}
	}
	return m
}

func (m SpeakerTimeMap) Lookup(start float64) (string, bool) {
	spk, ok := m[start]
	return spk, ok
}

// Labels returns the distinct speaker labels, sorted.
func (m SpeakerTimeMap) Labels() []string {
	seen := map[string]struct{}{}
	for _, spk := range m {
		seen[spk] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for spk := range seen {
		out = append(out, spk)
	}
	sort.Strings(out)
	return out
}

// foldState is the accumulator threaded through the item sequence.
type foldState struct {
	speaker  string
	open     bool // a line is being built
	text     string
	lines    Transcript
	streams  SpeakerTextStream
	duration float64
}

func (s foldState) flush() foldState {
	if s.open {
		s.lines = append(s.lines, TranscriptLine{Speaker: s.speaker, Text: s.text})
	}
	s.open = false
	s.text = ""
	return s
}

func (s foldState) appendStream(spk, piece string, sep bool) foldState {
	cur, known := s.streams[spk]
	if !known || spk == "" {
		return s
	}
	if sep && cur != "" {
		cur += " "
	}
	s.streams[spk] = cur + piece
	return s
}

func (s foldState) step(it RecognitionItem, speakers SpeakerTimeMap) foldState {
	switch it.Kind {
	case KindWord:
		spk, _ := speakers.Lookup(it.Start)
		if !s.open || spk != s.speaker {
			s = s.flush()
			s.speaker = spk
			s.open = true
			s.text = it.Content
		} else {
			s.text += " " + it.Content
		}
		s = s.appendStream(spk, it.Content, true)
		if it.End > s.duration {
			s.duration = it.End
		}
	case KindPunctuation:
		// nothing to attach to before the first word
		if !s.open {
			return s
		}
		s.text += it.Content
		s = s.appendStream(s.speaker, it.Content, false)
	}
	return s
}

// Normalize folds recognition items into a speaker-attributed transcript
// using the default two-party speaker set.
func Normalize(items []RecognitionItem, segments []DiarizationSegment) *Result {
	return NormalizeWith(items, segments, DefaultSpeakers)
}

// NormalizeWith is Normalize with an explicit set of known speakers. Words
// from other labels still appear in the transcript but get no text stream.
func NormalizeWith(items []RecognitionItem, segments []DiarizationSegment, known []string) *Result {
	speakers := BuildSpeakerTimeMap(segments)

	st := foldState{streams: NewSpeakerTextStream(known)}
	for _, it := range items {
		st = st.step(it, speakers)
	}
	st = st.flush()

	return &Result{
		Transcript: st.lines,
		Speakers:   speakers.Labels(),
		Streams:    st.streams,
		Duration:   st.duration,
		Segments:   segments,
	}
}
