package conflict

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const defaultMaxIter = 100

var ErrTooFewTexts = errors.New("clustering needs at least 2 texts")

// Partitioner assigns each vector a group label.
type Partitioner interface {
	Partition(ctx context.Context, vecs [][]float64, k int) ([]int, error)
}

// KMeans is a deterministic k-means over cosine distance. Seeds are chosen
// farthest-first starting at the first vector and every tie resolves to the lowest
// index, so the same input always yields the same labels.
type KMeans struct {
	MaxIter int
}

func cosDist(a, b []float64) float64 { return 1 - Cosine(a, b) }

func (km KMeans) Partition(ctx context.Context, vecs [][]float64, k int) ([]int, error) {
	n := len(vecs)
	if n == 0 {
		return nil, nil
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}

	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(vecs[0]))
	minDist := make([]float64, n)
	for i := range vecs {
		minDist[i] = cosDist(vecs[i], centroids[0])
	}
	chosen := map[int]bool{0: true}
	for len(centroids) < k {
		next := -1
		for i := range vecs {
			if chosen[i] {
				continue
			}
			if next < 0 || minDist[i] > minDist[next] {
				next = i
			}
		}
		chosen[next] = true
		centroids = append(centroids, clone(vecs[next]))
		for i := range vecs {
			minDist[i] = min(minDist[i], cosDist(vecs[i], vecs[next]))
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := false
		for i, v := range vecs {
			best, bestD := 0, cosDist(v, centroids[0])
			for c := 1; c < k; c++ {
				if d := cosDist(v, centroids[c]); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if fillEmpty(vecs, labels, centroids) {
			changed = true
		}
		if !changed {
			break
		}
		centroids = recompute(vecs, labels, k)
	}
	return labels, nil
}

// fillEmpty moves into every empty cluster the point farthest from its own
// centroid, taken from a cluster with more than one member.
func fillEmpty(vecs [][]float64, labels []int, centroids [][]float64) bool {
	moved := false
	for {
		sizes := make([]int, len(centroids))
		for _, l := range labels {
			sizes[l]++
		}
		empty := -1
		for c, s := range sizes {
			if s == 0 {
				empty = c
				break
			}
		}
		if empty < 0 {
			return moved
		}
		pick, pickD := -1, -1.0
		for i, l := range labels {
			if sizes[l] < 2 {
				continue
			}
			if d := cosDist(vecs[i], centroids[l]); d > pickD {
				pick, pickD = i, d
			}
		}
		labels[pick] = empty
		centroids[empty] = clone(vecs[pick])
		moved = true
	}
}

func recompute(vecs [][]float64, labels []int, k int) [][]float64 {
	dim := len(vecs[0])
	out := make([][]float64, k)
	counts := make([]int, k)
	for c := range out {
		out[c] = make([]float64, dim)
	}
	for i, v := range vecs {
		l := labels[i]
		counts[l]++
		for d := range v {
			out[l][d] += v[d]
		}
	}
	for c := range out {
		if counts[c] == 0 {
			continue
		}
		for d := range out[c] {
			out[c][d] /= float64(counts[c])
		}
	}
	return out
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }

// Clustering is the partition of candidate texts into topic groups.
type Clustering struct {
	Groups  [][]string
	Members [][]int // indices into the input texts
	Vectors [][]float64
	// Reduced is set when fewer texts than requested clusters were supplied.
	Reduced bool
	// Fallback is set when the primary partitioner failed.
	Fallback bool
	// EmbedFallback is set when the embedder failed and FallbackEmbedder was used.
	EmbedFallback bool
}

// SemanticClusterer embeds texts and partitions the vectors. When Embedder or
// Primary fails and the matching fallback is set, the fallback is used instead.
type SemanticClusterer struct {
	Embedder         Embedder
	FallbackEmbedder Embedder
	Primary          Partitioner
	Fallback         Partitioner
	Workers          int
}

func (sc SemanticClusterer) Cluster(ctx context.Context, texts []string, k int) (*Clustering, error) {
	if len(texts) < 2 {
		return nil, ErrTooFewTexts
	}
	out := &Clustering{}
	if k < 1 {
		k = 1
	}
	if len(texts) < k {
		log.WithFields(log.Fields{"texts": len(texts), "k": k}).Warn("fewer candidates than clusters, reducing k")
		k = len(texts)
		out.Reduced = true
	}

	vecs, err := EmbedAll(ctx, sc.Embedder, texts, sc.Workers)
	if err != nil && sc.FallbackEmbedder != nil && ctx.Err() == nil {
		log.WithError(err).Warn("embedder failed, using fallback")
		out.EmbedFallback = true
		vecs, err = EmbedAll(ctx, sc.FallbackEmbedder, texts, sc.Workers)
	}
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	out.Vectors = vecs

	primary := sc.Primary
	if primary == nil {
		primary = KMeans{}
	}
	labels, err := partition(ctx, primary, vecs, k)
	if err != nil {
		if sc.Fallback == nil {
			return nil, fmt.Errorf("cluster: %w", err)
		}
		log.WithError(err).Warn("primary partitioner failed, using fallback")
		out.Fallback = true
		if labels, err = partition(ctx, sc.Fallback, vecs, k); err != nil {
			return nil, fmt.Errorf("cluster fallback: %w", err)
		}
	}

	// Compact labels into groups ordered by first appearance.
	slot := map[int]int{}
	for i, l := range labels {
		g, ok := slot[l]
		if !ok {
			g = len(out.Groups)
			slot[l] = g
			out.Groups = append(out.Groups, nil)
			out.Members = append(out.Members, nil)
		}
		out.Groups[g] = append(out.Groups[g], texts[i])
		out.Members[g] = append(out.Members[g], i)
	}
	return out, nil
}

// partition runs p and checks it labelled every vector into exactly k groups.
func partition(ctx context.Context, p Partitioner, vecs [][]float64, k int) ([]int, error) {
	labels, err := p.Partition(ctx, vecs, k)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(vecs) {
		return nil, fmt.Errorf("partitioner returned %d labels for %d texts", len(labels), len(vecs))
	}
	distinct := map[int]bool{}
	for _, l := range labels {
		distinct[l] = true
	}
	if len(distinct) != k {
		return nil, fmt.Errorf("partitioner returned %d groups, want %d", len(distinct), k)
	}
	return labels, nil
}
