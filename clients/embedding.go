package clients

import (
	"context"
	"fmt"
)

// --- Embedding (/embed) ---
type EmbedReq struct {
	Text string `json:"text"`
}
type EmbedResp struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model"`
}

func (h *HTTP) Embed(ctx context.Context, url, text string) (*EmbedResp, error) {
	var out EmbedResp
	if err := h.postJSON(ctx, "embed", url+"/embed", EmbedReq{Text: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty vector")
	}
	return &out, nil
}

// EmbeddingService adapts the embedding endpoint to conflict.Embedder.
type EmbeddingService struct {
	HTTP *HTTP
	URL  string
}

func (s EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	r, err := s.HTTP.Embed(ctx, s.URL, text)
	if err != nil {
		return nil, err
	}
	return r.Embedding, nil
}
