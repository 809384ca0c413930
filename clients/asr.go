package clients

import (
	"context"

	"github.com/maastricht-university/meeting-conflicts/align"
)

// --- ASR (/transcribe) ---
type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

func (h *HTTP) ASR(ctx context.Context, url, wavPath string) (*ASRResp, error) {
	var out ASRResp
	if err := h.upload(ctx, "asr", url+"/transcribe", wavPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcript converts the ASR reply into aligner input.
func (r *ASRResp) Transcript() []align.TranscriptSegment {
	out := make([]align.TranscriptSegment, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = align.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return out
}
