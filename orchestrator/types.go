package orchestrator

import (
	"time"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/conflict"
)

const (
	StatusOK                     = "ok"
	StatusInsufficientCandidates = "insufficient_candidates"
	StatusClassifierUnavailable  = "classifier_unavailable"
)

// Params are the per-run thresholds. They are passed explicitly so concurrent
// runs can use different values.
type Params struct {
	Threshold           float64 `json:"conflict_threshold"`
	SimilarityThreshold float64 `json:"semantic_similarity_threshold"`
	ClusterNum          int     `json:"cluster_num"`
	SimilarityGate      bool    `json:"similarity_gate"`
}

type SpeakerStats struct {
	Utterances    int     `json:"utterances"`
	SpeakingTime  float64 `json:"speaking_time"`
	SpeakingShare float64 `json:"speaking_share"`
}

type PairStats struct {
	Evaluated         int `json:"evaluated"`
	Failed            int `json:"failed"`
	SkippedDissimilar int `json:"skipped_dissimilar"`
}

type Report struct {
	RunID       string    `json:"run_id"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
	Params      Params    `json:"params"`
	Status      string    `json:"status"`
	Warnings    []string  `json:"warnings,omitempty"`

	Utterances []align.AttributedUtterance   `json:"utterances"`
	Candidates []conflict.CandidateUtterance `json:"candidates"`
	Clusters   [][]string                    `json:"clusters,omitempty"`
	Conflicts  []conflict.ConflictPair       `json:"conflicts"`
	Pairs      PairStats                     `json:"pairs"`

	Speakers    map[string]SpeakerStats `json:"speakers"`
	OverlapRate float64                 `json:"overlap_rate"`

	Metrics *conflict.Metrics `json:"metrics,omitempty"`
}
