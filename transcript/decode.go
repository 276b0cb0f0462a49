package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// resultDoc mirrors the recognizer's transcript file.
type resultDoc struct {
	JobName string `json:"jobName"`
	Status  string `json:"status"`
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		SpeakerLabels *struct {
			Speakers int `json:"speakers"`
			Segments []struct {
				StartTime    string `json:"start_time"`
				EndTime      string `json:"end_time"`
				SpeakerLabel string `json:"speaker_label"`
				Items        []struct {
					StartTime string `json:"start_time"`
					EndTime   string `json:"end_time"`
				} `json:"items"`
			} `json:"segments"`
		} `json:"speaker_labels,omitempty"`
		Items []struct {
			StartTime    string `json:"start_time,omitempty"`
			EndTime      string `json:"end_time,omitempty"`
			Type         string `json:"type"`
			Alternatives []struct {
				Confidence string `json:"confidence"`
				Content    string `json:"content"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

// Raw is a decoded recognizer result, ready for Normalize.
type Raw struct {
	Items    []RecognitionItem
	Segments []DiarizationSegment
}

func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseTranscribeJSON decodes a recognizer result document.
func ParseTranscribeJSON(r io.Reader) (*Raw, error) {
	var doc resultDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("transcript decode: %w", err)
	}

	out := &Raw{Items: make([]RecognitionItem, 0, len(doc.Results.Items))}
	for i, it := range doc.Results.Items {
		ri := RecognitionItem{Kind: ItemKind(it.Type)}
		if len(it.Alternatives) > 0 {
			ri.Content = it.Alternatives[0].Content
			ri.Confidence, _ = strconv.ParseFloat(it.Alternatives[0].Confidence, 64)
		}
		switch ri.Kind {
		case KindWord:
			var err error
			if ri.Start, err = parseSeconds(it.StartTime); err != nil {
				return nil, fmt.Errorf("item %d start_time: %w", i, err)
			}
			if ri.End, err = parseSeconds(it.EndTime); err != nil {
				return nil, fmt.Errorf("item %d end_time: %w", i, err)
			}
		case KindPunctuation:
		default:
			return nil, fmt.Errorf("item %d: unknown type %q", i, it.Type)
		}
		out.Items = append(out.Items, ri)
	}

	if doc.Results.SpeakerLabels == nil {
		return out, nil
	}
	for i, seg := range doc.Results.SpeakerLabels.Segments {
		ds := DiarizationSegment{SpeakerLabel: seg.SpeakerLabel}
		var err error
		if ds.Start, err = parseSeconds(seg.StartTime); err != nil {
			return nil, fmt.Errorf("segment %d start_time: %w", i, err)
		}
		if ds.End, err = parseSeconds(seg.EndTime); err != nil {
			return nil, fmt.Errorf("segment %d end_time: %w", i, err)
		}
		for _, it := range seg.Items {
			si := SegmentItem{}
			if si.Start, err = parseSeconds(it.StartTime); err != nil {
				return nil, fmt.Errorf("segment %d item start_time: %w", i, err)
			}
			if si.End, err = parseSeconds(it.EndTime); err != nil {
				return nil, fmt.Errorf("segment %d item end_time: %w", i, err)
			}
			ds.Items = append(ds.Items, si)
		}
		out.Segments = append(out.Segments, ds)
	}
	return out, nil
}
