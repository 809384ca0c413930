package clients

import "context"

// --- Contradiction classifier (/contradiction) ---
type NLIReq struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}
type NLIResp struct {
	Contradiction float64 `json:"contradiction"`
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
}

func (h *HTTP) NLI(ctx context.Context, url, premise, hypothesis string) (*NLIResp, error) {
	var out NLIResp
	if err := h.postJSON(ctx, "nli", url+"/contradiction", NLIReq{Premise: premise, Hypothesis: hypothesis}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassifierService adapts the NLI endpoint to conflict.Classifier; the
// contradiction score is the conflict probability.
type ClassifierService struct {
	HTTP *HTTP
	URL  string
}

func (s ClassifierService) Classify(ctx context.Context, a, b string) (float64, error) {
	r, err := s.HTTP.NLI(ctx, s.URL, a, b)
	if err != nil {
		return 0, err
	}
	return r.Contradiction, nil
}
