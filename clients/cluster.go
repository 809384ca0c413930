package clients

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// --- Clustering (/cluster) ---
type ClusterReq struct {
	Features     [][]float64 `json:"features"`
	NClusters    int         `json:"n_clusters"`
	NComponents  int         `json:"n_components"`
	DimRedMethod string      `json:"dim_red_method"`
}

type ClusterResp struct {
	ClusterLabels              []int       `json:"cluster_labels"`
	MembershipMatrix           [][]float64 `json:"membership_matrix"`
	ReducedFeatures            [][]float64 `json:"reduced_features"`
	TotalExplainedVariance     float64     `json:"explained_variance"`
	DimensionExplainedVariance []float64   `json:"dimension_explained_variance"`
	ReductionUsed              string      `json:"reduction_used"`
}

func (h *HTTP) Cluster(ctx context.Context, url string, features [][]float64, k, ncomp int, method string) (*ClusterResp, error) {
	var out ClusterResp
	req := ClusterReq{Features: features, NClusters: k, NComponents: ncomp, DimRedMethod: method}
	if err := h.postJSON(ctx, "cluster", url+"/cluster", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClusterService adapts the clustering endpoint to conflict.Partitioner.
type ClusterService struct {
	HTTP        *HTTP
	URL         string
	NComponents int
	Method      string
}

func (s ClusterService) Partition(ctx context.Context, vecs [][]float64, k int) ([]int, error) {
	r, err := s.HTTP.Cluster(ctx, s.URL, vecs, k, s.NComponents, s.Method)
	if err != nil {
		return nil, err
	}
	if len(r.ClusterLabels) != len(vecs) {
		return nil, fmt.Errorf("cluster: got %d labels for %d vectors", len(r.ClusterLabels), len(vecs))
	}
	log.WithFields(log.Fields{
		"reduction":          r.ReductionUsed,
		"explained_variance": r.TotalExplainedVariance,
		"per_dimension":      r.DimensionExplainedVariance,
		"reduced_dims":       dims(r.ReducedFeatures),
		"membership_rows":    len(r.MembershipMatrix),
	}).Debug("clustering service reply")
	return r.ClusterLabels, nil
}

func dims(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
