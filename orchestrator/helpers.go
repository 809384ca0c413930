package orchestrator

import (
	"fmt"
	"math"
	"sort"

	"github.com/maastricht-university/meeting-conflicts/align"
)

// speakerStats computes per-speaker talk time and share, plus the fraction of
// the session during which more than one utterance is active.
func speakerStats(utts []align.AttributedUtterance) (map[string]SpeakerStats, float64) {
	stats := map[string]SpeakerStats{}
	if len(utts) == 0 {
		return stats, 0
	}
	total := 0.0
	type edge struct {
		t     float64
		delta int
	}
	var edges []edge
	start, end := utts[0].Start, utts[0].End
	for _, u := range utts {
		d := math.Max(0, u.End-u.Start)
		total += d
		s := stats[u.SpeakerID]
		s.Utterances++
		s.SpeakingTime += d
		stats[u.SpeakerID] = s
		edges = append(edges, edge{t: u.Start, delta: +1}, edge{t: u.End, delta: -1})
		start, end = math.Min(start, u.Start), math.Max(end, u.End)
	}
	// ends sort before starts at the same instant so touching segments don't overlap
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
		for k, s := range stats {
			s.SpeakingShare = s.SpeakingTime / total
			stats[k] = s
		}
	}
	rate := 0.0
	if dur := end - start; dur > 0 {
		rate = overlap / dur
	}
	return stats, rate
}

func rejectedWarnings(rej []*align.SegmentError) []string {
	out := make([]string, 0, len(rej))
	for _, r := range rej {
		out = append(out, fmt.Sprintf("skipped %s", r.Error()))
	}
	return out
}
