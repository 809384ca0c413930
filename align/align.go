// Package align reconciles transcript segments and diarization segments into
// speaker-attributed utterances.
package align

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Unknown labels an utterance that no speaker segment overlaps.
const Unknown = "UNKNOWN"

var (
	ErrEmptyInput       = errors.New("empty transcript or speaker input")
	ErrMalformedSegment = errors.New("malformed segment")
)

type TranscriptSegment struct {
	Start float64 `json:"start_time" yaml:"start_time"`
	End   float64 `json:"end_time" yaml:"end_time"`
	Text  string  `json:"text" yaml:"text"`
}

type SpeakerSegment struct {
	Start     float64 `json:"start_time" yaml:"start_time"`
	End       float64 `json:"end_time" yaml:"end_time"`
	SpeakerID string  `json:"speaker_id" yaml:"speaker_id"`
}

type AttributedUtterance struct {
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
}

// SegmentError reports one rejected input segment. It wraps ErrMalformedSegment.
type SegmentError struct {
	Kind  string // "transcript" or "speaker"
	Index int
	Start float64
	End   float64
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s segment %d [%g, %g]: %v", e.Kind, e.Index, e.Start, e.End, ErrMalformedSegment)
}

func (e *SegmentError) Unwrap() error { return ErrMalformedSegment }

type Options struct {
	Workers int
}

type Result struct {
	Utterances []AttributedUtterance
	Rejected   []*SegmentError
}

func validInterval(start, end float64) bool {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return false
	}
	return start >= 0 && end > start
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Max(0, math.Min(aEnd, bEnd)-math.Max(aStart, bStart))
}

// Align attributes every valid transcript segment to the speaker segment with the
// largest temporal overlap. Ties go to the earliest speaker start, then the smallest
// speaker id; segments with no positive overlap get Unknown. Malformed segments on
// either side are skipped and listed in Result.Rejected.
func Align(ctx context.Context, transcript []TranscriptSegment, speakers []SpeakerSegment, opts Options) (*Result, error) {
	if len(transcript) == 0 || len(speakers) == 0 {
		return nil, ErrEmptyInput
	}
	res := &Result{}

	type indexed struct {
		seg TranscriptSegment
		idx int
	}
	ts := make([]indexed, 0, len(transcript))
	for i, t := range transcript {
		if !validInterval(t.Start, t.End) {
			res.Rejected = append(res.Rejected, &SegmentError{Kind: "transcript", Index: i, Start: t.Start, End: t.End})
			continue
		}
		t.Text = strings.TrimSpace(t.Text)
		ts = append(ts, indexed{seg: t, idx: i})
	}
	ss := make([]SpeakerSegment, 0, len(speakers))
	for i, s := range speakers {
		if !validInterval(s.Start, s.End) {
			res.Rejected = append(res.Rejected, &SegmentError{Kind: "speaker", Index: i, Start: s.Start, End: s.End})
			continue
		}
		ss = append(ss, s)
	}
	for _, r := range res.Rejected {
		log.WithField("segment", r.Index).Warn(r.Error())
	}

	sort.SliceStable(ts, func(i, j int) bool { return ts[i].seg.Start < ts[j].seg.Start })
	// Scanning speakers in (start, id) order lets a strict ">" implement the tie-break.
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].Start != ss[j].Start {
			return ss[i].Start < ss[j].Start
		}
		return ss[i].SpeakerID < ss[j].SpeakerID
	})

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]AttributedUtterance, len(ts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range ts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := ts[i].seg
			out[i] = AttributedUtterance{Start: t.Start, End: t.End, SpeakerID: assign(t, ss), Text: t.Text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	res.Utterances = out

	log.WithFields(log.Fields{
		"utterances": len(out),
		"speakers":   len(ss),
		"rejected":   len(res.Rejected),
	}).Debug("alignment done")
	return res, nil
}

func assign(t TranscriptSegment, speakers []SpeakerSegment) string {
	best, bestOverlap := Unknown, 0.0
	for _, s := range speakers {
		if s.Start >= t.End {
			break
		}
		if o := overlap(t.Start, t.End, s.Start, s.End); o > bestOverlap {
			best, bestOverlap = s.SpeakerID, o
		}
	}
	return best
}
