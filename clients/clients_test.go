package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/meeting-conflicts/align"
)

func serve(t *testing.T, path string, h http.HandlerFunc) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestASRAndDiarizationUpload(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o644))

	url := serve(t, "/transcribe", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "meeting.wav", hdr.Filename)
		writeJSON(w, ASRResp{Segments: []TransSeg{{Start: 0, End: 2, Text: "Sales rose 10%"}}, Language: "en"})
	})
	h := NewHTTP(time.Second)
	asr, err := h.ASR(context.Background(), url, wav)
	require.NoError(t, err)
	assert.Equal(t, []align.TranscriptSegment{{Start: 0, End: 2, Text: "Sales rose 10%"}}, asr.Transcript())

	url = serve(t, "/diarize", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, DiarizationResp{Segments: []SpkSeg{{Start: 0, End: 3, Speaker: "SPEAKER_00"}}, NumSpeakers: 1})
	})
	dia, err := h.Diarize(context.Background(), url, wav)
	require.NoError(t, err)
	assert.Equal(t, []align.SpeakerSegment{{Start: 0, End: 3, SpeakerID: "SPEAKER_00"}}, dia.Speakers())
}

func TestEmbeddingService(t *testing.T) {
	url := serve(t, "/embed", func(w http.ResponseWriter, r *http.Request) {
		var req EmbedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		writeJSON(w, EmbedResp{Embedding: []float64{0.1, 0.2}, Model: "test"})
	})
	v, err := EmbeddingService{HTTP: NewHTTP(time.Second), URL: url}.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, v)
}

func TestEmbedEmptyVector(t *testing.T) {
	url := serve(t, "/embed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, EmbedResp{})
	})
	_, err := NewHTTP(time.Second).Embed(context.Background(), url, "x")
	assert.Error(t, err)
}

func TestClassifierService(t *testing.T) {
	url := serve(t, "/contradiction", func(w http.ResponseWriter, r *http.Request) {
		var req NLIReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a", req.Premise)
		assert.Equal(t, "b", req.Hypothesis)
		writeJSON(w, NLIResp{Contradiction: 0.92, Neutral: 0.05, Entailment: 0.03})
	})
	p, err := ClassifierService{HTTP: NewHTTP(time.Second), URL: url}.Classify(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.92, p)
}

func TestClassifierServiceError(t *testing.T) {
	url := serve(t, "/contradiction", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	})
	_, err := ClassifierService{HTTP: NewHTTP(time.Second), URL: url}.Classify(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nli 503")
}

func TestClusterService(t *testing.T) {
	url := serve(t, "/cluster", func(w http.ResponseWriter, r *http.Request) {
		var req ClusterReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.NClusters)
		labels := make([]int, len(req.Features))
		for i := range labels {
			labels[i] = i % req.NClusters
		}
		writeJSON(w, ClusterResp{ClusterLabels: labels})
	})
	s := ClusterService{HTTP: NewHTTP(time.Second), URL: url, NComponents: 2, Method: "pca"}
	labels, err := s.Partition(context.Background(), [][]float64{{1}, {2}, {3}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, labels)
}

func TestClusterServiceLogsReduction(t *testing.T) {
	url := serve(t, "/cluster", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ClusterResp{
			ClusterLabels:          []int{0, 1},
			ReducedFeatures:        [][]float64{{0.1, 0.2}, {0.3, 0.4}},
			TotalExplainedVariance: 0.87,
			ReductionUsed:          "pca",
		})
	})
	hook := test.NewGlobal()
	defer hook.Reset()
	lvl := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(lvl)

	s := ClusterService{HTTP: NewHTTP(time.Second), URL: url}
	_, err := s.Partition(context.Background(), [][]float64{{1}, {2}}, 2)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.DebugLevel, entry.Level)
	assert.Equal(t, "pca", entry.Data["reduction"])
	assert.Equal(t, 0.87, entry.Data["explained_variance"])
	assert.Equal(t, 2, entry.Data["reduced_dims"])
}

func TestClusterServiceLabelMismatch(t *testing.T) {
	url := serve(t, "/cluster", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ClusterResp{ClusterLabels: []int{0}})
	})
	s := ClusterService{HTTP: NewHTTP(time.Second), URL: url}
	_, err := s.Partition(context.Background(), [][]float64{{1}, {2}}, 2)
	assert.Error(t, err)
}
