package conflict

// Metrics compares predicted conflicts against a labelled set.
type Metrics struct {
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

type pairKey struct{ a, b string }

func keyOf(p ConflictPair) pairKey {
	if p.Text2 < p.Text1 {
		return pairKey{p.Text2, p.Text1}
	}
	return pairKey{p.Text1, p.Text2}
}

// Evaluate matches pairs by their texts, ignoring order within a pair.
// Precision is 0 without predictions and recall is 0 without labels.
func Evaluate(truth, predicted []ConflictPair) Metrics {
	want := map[pairKey]bool{}
	for _, p := range truth {
		want[keyOf(p)] = true
	}
	got := map[pairKey]bool{}
	for _, p := range predicted {
		got[keyOf(p)] = true
	}

	var m Metrics
	for k := range got {
		if want[k] {
			m.TruePositives++
		} else {
			m.FalsePositives++
		}
	}
	for k := range want {
		if !got[k] {
			m.FalseNegatives++
		}
	}
	if n := m.TruePositives + m.FalsePositives; n > 0 {
		m.Precision = float64(m.TruePositives) / float64(n)
	}
	if n := m.TruePositives + m.FalseNegatives; n > 0 {
		m.Recall = float64(m.TruePositives) / float64(n)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
