package transcript

import "strings"

type ItemKind string

const (
	KindWord        ItemKind = "pronunciation"
	KindPunctuation ItemKind = "punctuation"
)

// UnknownLabel prefixes lines whose words matched no diarization segment.
const UnknownLabel = "unknown"

// DefaultSpeakers are the two parties of a diarized call.
var DefaultSpeakers = []string{"spk_0", "spk_1"}

type RecognitionItem struct {
	Kind       ItemKind
	Start      float64 // sec, words only
	End        float64 // sec, words only
	Content    string
	Confidence float64
}

type SegmentItem struct {
	Start float64
	End   float64
}

type DiarizationSegment struct {
	SpeakerLabel string
	Start        float64
	End          float64
	Items        []SegmentItem
}

type TranscriptLine struct {
	Speaker string // "" when no segment covered the first word
	Text    string
}

func (l TranscriptLine) Label() string {
	if l.Speaker == "" {
		return UnknownLabel
	}
	return l.Speaker
}

func (l TranscriptLine) String() string { return l.Label() + ": " + l.Text }

type Transcript []TranscriptLine

// String renders one "<label>: <text>" line per entry, each newline-terminated.
func (t Transcript) String() string {
	var b strings.Builder
	for _, l := range t {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// SpeakerTextStream holds each known speaker's words and punctuation only.
type SpeakerTextStream map[string]string

func NewSpeakerTextStream(speakers []string) SpeakerTextStream {
	s := make(SpeakerTextStream, len(speakers))
	for _, spk := range speakers {
		s[spk] = ""
	}
	return s
}

type Result struct {
	Transcript Transcript
	Speakers   []string // distinct labels seen in diarization, sorted
	Streams    SpeakerTextStream
	Duration   float64
	Segments   []DiarizationSegment
}

// Text is the rendered transcript.
func (r *Result) Text() string { return r.Transcript.String() }
