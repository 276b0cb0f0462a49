package orchestrator

import (
	"math"
	"sort"

	"github.com/callinsight/call-pipeline/transcript"
)

func turns(segs []transcript.DiarizationSegment) []Turn {
	out := make([]Turn, 0, len(segs))
	for _, s := range segs {
		if s.SpeakerLabel == "" || s.End <= s.Start {
			continue
		}
		out = append(out, Turn{Start: s.Start, End: s.End, Spk: s.SpeakerLabel})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// activity spans every turn of the call.
func activity(ts []Turn) Activity {
	a := Activity{Turns: ts}
	if len(ts) == 0 {
		return a
	}
	a.T0 = ts[0].Start
	for _, t := range ts {
		a.T1 = math.Max(a.T1, t.End)
	}
	a.aggregate()
	return a
}

func (a *Activity) aggregate() {
	a.SpeakingShare = map[string]float64{}
	if len(a.Turns) == 0 {
		return
	}
	total := 0.0
	type edge struct {
		t     float64
		delta int
	}
	var edges []edge
	for _, u := range a.Turns {
		d := math.Max(0, u.End-u.Start)
		total += d
		a.SpeakingShare[u.Spk] += d
		edges = append(edges, edge{t: u.Start, delta: +1}, edge{t: u.End, delta: -1})
	}
	// ends sort before starts at the same instant so back-to-back turns do not overlap
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].t != edges[j].t {
			return edges[i].t < edges[j].t
		}
		return edges[i].delta < edges[j].delta
	})
	active := 0
	last := edges[0].t
	overlap := 0.0
	for _, e := range edges {
		if active > 1 {
			overlap += e.t - last
		}
		active += e.delta
		last = e.t
	}
	if total > 0 {
		for k := range a.SpeakingShare {
			a.SpeakingShare[k] = a.SpeakingShare[k] / total * 100
		}
	}
	if dur := a.T1 - a.T0; dur > 0 {
		a.OverlapRate = overlap / dur
	}
}
