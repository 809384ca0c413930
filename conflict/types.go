// Package conflict narrows attributed utterances down to pairs of statements that
// contradict each other.
//
// The stages run strictly forward:
//
//  1. KeywordFilter shortlists utterances containing assertion markers.
//  2. A Clusterer groups the candidate texts by topic using an Embedder.
//  3. Aggregator walks every in-cluster pair and asks a Detector, which wraps a
//     Classifier and a decision threshold, whether the pair conflicts.
//
// Embedder and Classifier are capability interfaces so the external models behind
// them can be swapped for local deterministic implementations.
package conflict

import (
	"context"
	"errors"

	"github.com/maastricht-university/meeting-conflicts/align"
)

const (
	DefaultThreshold           = 0.8
	DefaultSimilarityThreshold = 0.7
	DefaultClusterNum          = 3
)

var ErrInvalidProbability = errors.New("classifier probability outside [0,1]")

// CandidateUtterance is an utterance selected by the keyword filter together with
// the lexicon terms that triggered the selection.
type CandidateUtterance struct {
	Utterance align.AttributedUtterance `json:"utterance"`
	Keywords  []string                  `json:"keywords"`
}

// ConflictPair is a flagged pair of candidate texts.
type ConflictPair struct {
	Text1       string  `json:"text1"`
	Text2       string  `json:"text2"`
	Probability float64 `json:"conflict_prob"`
}

// Embedder maps a text to a fixed-dimension semantic vector.
//
// Implementations must be deterministic for a given text and safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Classifier returns the probability, in [0,1], that two texts assert mutually
// incompatible claims.
//
// Implementations must be safe for concurrent use. They do not need to be
// symmetric themselves; Detector always calls them with the texts in a
// canonical order.
type Classifier interface {
	Classify(ctx context.Context, a, b string) (float64, error)
}

// Texts extracts the utterance texts of candidates, preserving order.
func Texts(cands []CandidateUtterance) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Utterance.Text
	}
	return out
}
