package conflict

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Aggregator evaluates every in-cluster pair and collects the flagged ones.
type Aggregator struct {
	Detector    Detector
	Workers     int
	PairTimeout time.Duration

	// Optional similarity gate: when Vectors is set, pairs whose cosine similarity
	// is below MinSimilarity are not classified. Vectors is indexed like Members.
	Vectors       [][]float64
	Members       [][]int
	MinSimilarity float64
}

type Aggregation struct {
	Conflicts         []ConflictPair
	Evaluated         int
	Failed            int
	SkippedDissimilar int
	// Unavailable is set when pairs were attempted and every one of them failed.
	Unavailable bool
}

type pairJob struct {
	a, b     string
	gateSkip bool
}

type verdict struct {
	flagged bool
	prob    float64
	err     error
}

// Aggregate walks clusters in order and, within each, every pair (i, j) with i < j.
// Flagged pairs are returned in that evaluation order. A pair whose classification
// fails or times out is logged and left out; the run only degrades.
func (ag Aggregator) Aggregate(ctx context.Context, clusters [][]string) (*Aggregation, error) {
	res := &Aggregation{Conflicts: []ConflictPair{}}
	total := 0
	for _, c := range clusters {
		total += len(c)
	}
	if total < 2 {
		return res, nil
	}

	var jobs []pairJob
	for ci, c := range clusters {
		for i := 0; i < len(c); i++ {
			for j := i + 1; j < len(c); j++ {
				jobs = append(jobs, pairJob{a: c[i], b: c[j], gateSkip: ag.dissimilar(ci, i, j)})
			}
		}
	}

	workers := ag.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	verdicts := make([]verdict, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for n := range jobs {
		if jobs[n].gateSkip {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pctx, cancel := gctx, context.CancelFunc(func() {})
			if ag.PairTimeout > 0 {
				pctx, cancel = context.WithTimeout(gctx, ag.PairTimeout)
			}
			defer cancel()
			flagged, p, err := ag.Detector.DetectConflict(pctx, jobs[n].a, jobs[n].b)
			verdicts[n] = verdict{flagged: flagged, prob: p, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for n, v := range verdicts {
		if jobs[n].gateSkip {
			res.SkippedDissimilar++
			continue
		}
		res.Evaluated++
		if v.err != nil {
			res.Failed++
			log.WithError(v.err).WithFields(log.Fields{"text1": jobs[n].a, "text2": jobs[n].b}).
				Warn("pair classification failed, excluding pair")
			continue
		}
		if v.flagged {
			res.Conflicts = append(res.Conflicts, ConflictPair{Text1: jobs[n].a, Text2: jobs[n].b, Probability: v.prob})
		}
	}
	res.Unavailable = res.Evaluated > 0 && res.Failed == res.Evaluated
	return res, nil
}

func (ag Aggregator) dissimilar(cluster, i, j int) bool {
	if ag.Vectors == nil || cluster >= len(ag.Members) {
		return false
	}
	m := ag.Members[cluster]
	if i >= len(m) || j >= len(m) {
		return false
	}
	return Cosine(ag.Vectors[m[i]], ag.Vectors[m[j]]) < ag.MinSimilarity
}
