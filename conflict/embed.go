package conflict

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const DefaultEmbeddingDim = 256

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "for": true,
	"by": true, "with": true, "it": true, "its": true, "this": true, "that": true,
	"we": true, "i": true, "you": true, "they": true, "he": true, "she": true,
	"our": true, "their": true, "as": true, "so": true, "than": true, "from": true,
}

// HashEmbedder is a local bag-of-words embedder using the hashing trick. Stop
// words are dropped, tokens are hashed into Dim buckets with a sign bit and the
// vector is L2-normalised.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	vec := make([]float64, dim)
	for _, tok := range tokenize(text) {
		if stopWords[tok] {
			continue
		}
		hf := fnv.New64a()
		_, _ = hf.Write([]byte(tok))
		sum := hf.Sum64()
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(dim)] += sign
	}
	normalize(vec)
	return vec, nil
}

func normalize(v []float64) {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero vector.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EmbedAll embeds every text concurrently on at most workers goroutines. The
// result is index-aligned with texts.
func EmbedAll(ctx context.Context, e Embedder, texts []string, workers int) ([][]float64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range texts {
		g.Go(func() error {
			v, err := e.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("embed text %d: dimension %d, want %d", i, len(v), dim)
		}
	}
	return out, nil
}
