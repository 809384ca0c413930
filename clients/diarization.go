package clients

import (
	"context"

	"github.com/maastricht-university/meeting-conflicts/align"
)

// --- Diarization (/diarize) ---
type SpkSeg struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}
type DiarizationResp struct {
	Segments    []SpkSeg `json:"segments"`
	NumSpeakers int      `json:"num_speakers"`
}

func (h *HTTP) Diarize(ctx context.Context, url, wavPath string) (*DiarizationResp, error) {
	var out DiarizationResp
	if err := h.upload(ctx, "diarization", url+"/diarize", wavPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *DiarizationResp) Speakers() []align.SpeakerSegment {
	out := make([]align.SpeakerSegment, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = align.SpeakerSegment{Start: s.Start, End: s.End, SpeakerID: s.Speaker}
	}
	return out
}
