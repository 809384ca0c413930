package conflict

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Detector turns classifier probabilities into conflict decisions.
type Detector struct {
	Classifier Classifier
	Threshold  float64
}

// DetectConflict reports whether a and b conflict. The classifier always sees the
// lexicographically smaller text first, which makes the result symmetric.
func (d Detector) DetectConflict(ctx context.Context, a, b string) (bool, float64, error) {
	if b < a {
		a, b = b, a
	}
	p, err := d.Classifier.Classify(ctx, a, b)
	if err != nil {
		return false, 0, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return false, 0, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	return p >= d.Threshold, p, nil
}

// opposites pairs terms that flip the polarity of a claim.
var opposites = [][2]string{
	{"rose", "fell"}, {"rise", "fall"}, {"rising", "falling"},
	{"grew", "shrank"}, {"grow", "shrink"}, {"growing", "shrinking"},
	{"increase", "decrease"}, {"increased", "decreased"}, {"increasing", "decreasing"},
	{"up", "down"}, {"higher", "lower"}, {"more", "less"}, {"above", "below"},
	{"gain", "loss"}, {"profit", "loss"}, {"better", "worse"}, {"best", "worst"},
	{"success", "failure"}, {"successful", "failed"}, {"works", "broken"},
	{"agree", "disagree"}, {"accept", "reject"}, {"approved", "rejected"},
	{"true", "false"}, {"right", "wrong"}, {"yes", "no"}, {"always", "never"},
	{"ahead", "behind"}, {"early", "late"}, {"fast", "slow"}, {"stable", "unstable"},
	{"secure", "insecure"}, {"possible", "impossible"}, {"likely", "unlikely"},
	{"will", "won't"}, {"can", "can't"}, {"should", "shouldn't"}, {"is", "isn't"},
	{"does", "doesn't"}, {"did", "didn't"}, {"was", "wasn't"}, {"are", "aren't"},
	{"over", "under"}, {"before", "after"}, {"expand", "cut"}, {"hire", "fire"},
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nothing": true,
	"cannot": true, "neither": true, "nor": true,
}

var polarityTerms = func() map[string]bool {
	m := map[string]bool{}
	for _, p := range opposites {
		m[p[0]], m[p[1]] = true, true
	}
	return m
}()

const (
	weightOpposite = 0.9
	weightNegation = 0.7
	weightNumber   = 0.6
)

// LexicalClassifier scores contradictions from surface cues: opposing terms
// across the two texts, negation present in only one of them, and differing
// numbers. The combined cue score is scaled by how much subject matter the texts
// share and is zero when they share none.
type LexicalClassifier struct{}

type features struct {
	tokens  map[string]bool
	topic   map[string]bool
	numbers map[string]bool
	negated bool
}

func extract(text string) features {
	f := features{tokens: map[string]bool{}, topic: map[string]bool{}, numbers: map[string]bool{}}
	for _, tok := range tokenize(text) {
		tok = strings.Trim(tok, ".'")
		if tok == "" {
			continue
		}
		f.tokens[tok] = true
		switch {
		case hasDigit(tok):
			f.numbers[strings.TrimSuffix(tok, "%")] = true
		case negations[tok] || strings.HasSuffix(tok, "n't"):
			f.negated = true
		case !stopWords[tok] && !polarityTerms[tok]:
			f.topic[tok] = true
		}
	}
	return f
}

func (LexicalClassifier) Classify(_ context.Context, a, b string) (float64, error) {
	fa, fb := extract(a), extract(b)

	shared := 0
	for t := range fa.topic {
		if fb.topic[t] {
			shared++
		}
	}
	if shared == 0 {
		return 0, nil
	}
	relevance := float64(shared) / float64(min(len(fa.topic), len(fb.topic)))

	var cues []float64
	for _, p := range opposites {
		if (fa.tokens[p[0]] && fb.tokens[p[1]] && !fa.tokens[p[1]] && !fb.tokens[p[0]]) ||
			(fa.tokens[p[1]] && fb.tokens[p[0]] && !fa.tokens[p[0]] && !fb.tokens[p[1]]) {
			cues = append(cues, weightOpposite)
			break
		}
	}
	if fa.negated != fb.negated {
		cues = append(cues, weightNegation)
	}
	if len(fa.numbers) > 0 && len(fb.numbers) > 0 && !sameSet(fa.numbers, fb.numbers) {
		cues = append(cues, weightNumber)
	}
	if len(cues) == 0 {
		return 0, nil
	}

	miss := 1.0
	for _, c := range cues {
		miss *= 1 - c
	}
	p := (1 - miss) * (0.75 + 0.25*relevance)
	return math.Round(p*1e4) / 1e4, nil
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
