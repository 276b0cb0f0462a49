package sentiment

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
	Neutral  Label = "NEUTRAL"
	Mixed    Label = "MIXED"
)

// Labels lists every label in tie-break order.
var Labels = []Label{Positive, Negative, Neutral, Mixed}

func (l Label) Valid() bool {
	switch l {
	case Positive, Negative, Neutral, Mixed:
		return true
	}
	return false
}

func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown sentiment %q", s)
	}
	return l, nil
}

func (l *Label) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Counts is a histogram over all four labels.
type Counts map[Label]int

func NewCounts() Counts {
	c := make(Counts, len(Labels))
	for _, l := range Labels {
		c[l] = 0
	}
	return c
}

func CountLabels(labels []Label) Counts {
	c := NewCounts()
	for _, l := range labels {
		c[l]++
	}
	return c
}

func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Dominant returns the label with the highest count; the first label in
// Labels order wins ties.
func (c Counts) Dominant() Label {
	best := Labels[0]
	for _, l := range Labels[1:] {
		if c[l] > c[best] {
			best = l
		}
	}
	return best
}

// Overall reduces a flat label list; no labels means NEUTRAL.
func Overall(labels []Label) Label {
	if len(labels) == 0 {
		return Neutral
	}
	return CountLabels(labels).Dominant()
}
