package conflict

import (
	"strings"
	"unicode"

	"github.com/maastricht-university/meeting-conflicts/align"
)

// NumberTerm matches any token containing a digit.
const NumberTerm = "#number"

// DefaultKeywords lists markers of assertions that can be contradicted: numbers,
// negations, modal verbs, comparatives and evaluative verbs.
var DefaultKeywords = []string{
	NumberTerm,
	// negations
	"not", "no", "never", "none", "nothing", "n't", "cannot",
	// modals
	"should", "must", "will", "would", "could", "might", "may", "can", "need",
	// comparatives and direction
	"more", "less", "higher", "lower", "better", "worse", "increase", "increased",
	"decrease", "decreased", "rose", "fell", "grew", "shrank", "up", "down",
	"above", "below", "most", "least",
	// evaluative / assertion
	"think", "believe", "agree", "disagree", "definitely", "always", "certainly",
	"wrong", "right", "true", "false", "actually",
}

type KeywordFilter struct {
	words   map[string]bool
	phrases []string
	order   []string
	numbers bool
}

// NewKeywordFilter builds a filter over terms; an empty list selects DefaultKeywords.
func NewKeywordFilter(terms []string) *KeywordFilter {
	if len(terms) == 0 {
		terms = DefaultKeywords
	}
	f := &KeywordFilter{words: map[string]bool{}}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		f.order = append(f.order, t)
		switch {
		case t == NumberTerm:
			f.numbers = true
		case strings.ContainsAny(t, " '"):
			f.phrases = append(f.phrases, t)
		default:
			f.words[t] = true
		}
	}
	return f
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '%' && r != '.' && r != '\''
	})
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// Match returns the lexicon terms present in text, in lexicon order.
func (f *KeywordFilter) Match(text string) []string {
	lower := strings.ToLower(text)
	toks := map[string]bool{}
	number := false
	for _, tok := range tokenize(text) {
		tok = strings.Trim(tok, ".'")
		toks[tok] = true
		if hasDigit(tok) {
			number = true
		}
	}
	var hits []string
	for _, t := range f.order {
		switch {
		case t == NumberTerm:
			if number {
				hits = append(hits, t)
			}
		case f.words[t]:
			if toks[t] {
				hits = append(hits, t)
			}
		default:
			if strings.Contains(lower, t) {
				hits = append(hits, t)
			}
		}
	}
	return hits
}

// Filter keeps the utterances containing at least one lexicon term, in input order.
func (f *KeywordFilter) Filter(utts []align.AttributedUtterance) []CandidateUtterance {
	var out []CandidateUtterance
	for _, u := range utts {
		if hits := f.Match(u.Text); len(hits) > 0 {
			out = append(out, CandidateUtterance{Utterance: u, Keywords: hits})
		}
	}
	return out
}
