package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/clients"
	cfg "github.com/maastricht-university/meeting-conflicts/config"
	"github.com/maastricht-university/meeting-conflicts/conflict"
	"github.com/maastricht-university/meeting-conflicts/input"
)

var ErrServiceNotConfigured = errors.New("service url not configured")

type Pipeline struct {
	cfg  *cfg.Root
	http *clients.HTTP

	filter     *conflict.KeywordFilter
	embedder   conflict.Embedder
	localEmbed conflict.Embedder
	classifier conflict.Classifier
	primary    conflict.Partitioner
	fallback   conflict.Partitioner
}

type Option func(*Pipeline)

func WithEmbedder(e conflict.Embedder) Option     { return func(p *Pipeline) { p.embedder = e } }
func WithClassifier(c conflict.Classifier) Option { return func(p *Pipeline) { p.classifier = c } }
func WithPartitioner(pt conflict.Partitioner) Option {
	return func(p *Pipeline) { p.primary, p.fallback = pt, nil }
}

// NewPipeline wires the configured model services. A capability without a
// service URL runs locally: hashed embeddings, lexical classifier, k-means.
func NewPipeline(c *cfg.Root, opts ...Option) *Pipeline {
	h := clients.NewHTTP(c.ServiceTimeout())
	p := &Pipeline{
		cfg:        c,
		http:       h,
		filter:     conflict.NewKeywordFilter(c.Conflict.Keywords),
		embedder:   conflict.HashEmbedder{Dim: c.Conflict.EmbeddingDim},
		localEmbed: conflict.HashEmbedder{Dim: c.Conflict.EmbeddingDim},
		classifier: conflict.LexicalClassifier{},
		primary:    conflict.KMeans{MaxIter: c.Conflict.MaxIter},
	}
	if u := c.Services.Embedding.URL; u != "" {
		p.embedder = clients.EmbeddingService{HTTP: h, URL: u}
	}
	if u := c.Services.Classifier.URL; u != "" {
		p.classifier = clients.ClassifierService{HTTP: h, URL: u}
	}
	if u := c.Services.Clustering.URL; u != "" {
		p.primary = clients.ClusterService{HTTP: h, URL: u, NComponents: 2, Method: "none"}
		p.fallback = conflict.KMeans{MaxIter: c.Conflict.MaxIter}
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// DefaultParams returns the thresholds from configuration.
func (p *Pipeline) DefaultParams() Params {
	return Params{
		Threshold:           p.cfg.Conflict.Threshold,
		SimilarityThreshold: p.cfg.Conflict.SimilarityThreshold,
		ClusterNum:          p.cfg.Conflict.ClusterNum,
		SimilarityGate:      p.cfg.Conflict.SimilarityGate,
	}
}

// RunAudio sends the recording to the ASR and diarization services and analyzes
// their output.
func (p *Pipeline) RunAudio(ctx context.Context, wavPath string, params Params) (*Report, error) {
	if _, err := os.Stat(wavPath); err != nil {
		return nil, fmt.Errorf("input audio: %w", err)
	}
	if p.cfg.Services.ASR.URL == "" {
		return nil, fmt.Errorf("asr: %w", ErrServiceNotConfigured)
	}
	if p.cfg.Services.Diarization.URL == "" {
		return nil, fmt.Errorf("diarization: %w", ErrServiceNotConfigured)
	}

	asr, err := p.http.ASR(ctx, p.cfg.Services.ASR.URL, wavPath)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"segments": len(asr.Segments), "language": asr.Language}).Info("transcription received")

	dia, err := p.http.Diarize(ctx, p.cfg.Services.Diarization.URL, wavPath)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"segments": len(dia.Segments), "speakers": dia.NumSpeakers}).Info("diarization received")

	return p.Analyze(ctx, asr.Transcript(), dia.Speakers(), params)
}

// Analyze runs alignment and conflict detection over one recording's segments.
// Only missing input fails the run; every other problem is recorded as a warning.
func (p *Pipeline) Analyze(ctx context.Context, transcript []align.TranscriptSegment, speakers []align.SpeakerSegment, params Params) (*Report, error) {
	fp, err := input.FingerprintSegments(transcript, speakers)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	rep := &Report{
		RunID:       uuid.NewString(),
		Fingerprint: fp,
		GeneratedAt: time.Now().UTC(),
		Params:      params,
		Status:      StatusOK,
		Candidates:  []conflict.CandidateUtterance{},
		Conflicts:   []conflict.ConflictPair{},
	}
	logger := log.WithField("run", rep.RunID)

	aligned, err := align.Align(ctx, transcript, speakers, align.Options{Workers: p.cfg.Pipeline.Workers})
	if err != nil {
		return nil, err
	}
	rep.Utterances = aligned.Utterances
	rep.Warnings = append(rep.Warnings, rejectedWarnings(aligned.Rejected)...)
	rep.Speakers, rep.OverlapRate = speakerStats(rep.Utterances)
	logger.WithFields(log.Fields{
		"utterances": len(rep.Utterances),
		"rejected":   len(aligned.Rejected),
		"speakers":   len(rep.Speakers),
	}).Info("alignment done")

	if c := p.filter.Filter(rep.Utterances); c != nil {
		rep.Candidates = c
	}
	logger.WithField("candidates", len(rep.Candidates)).Info("keyword filter done")
	if len(rep.Candidates) < 2 {
		rep.Status = StatusInsufficientCandidates
		rep.Warnings = append(rep.Warnings, "fewer than 2 candidates, conflict detection skipped")
		logger.Info("not enough candidates for conflict detection, skipping")
		return rep, nil
	}

	sc := conflict.SemanticClusterer{
		Embedder:         p.embedder,
		FallbackEmbedder: p.localEmbed,
		Primary:          p.primary,
		Fallback:         p.fallback,
		Workers:          p.cfg.Pipeline.Workers,
	}
	clustering, err := sc.Cluster(ctx, conflict.Texts(rep.Candidates), params.ClusterNum)
	if err != nil {
		return nil, err
	}
	rep.Clusters = clustering.Groups
	if clustering.Reduced {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("cluster count reduced from %d to %d", params.ClusterNum, len(clustering.Groups)))
	}
	if clustering.EmbedFallback {
		rep.Warnings = append(rep.Warnings, "embedding service failed, used local embeddings")
	}
	if clustering.Fallback {
		rep.Warnings = append(rep.Warnings, "clustering service failed, used local k-means")
	}
	logger.WithField("clusters", len(rep.Clusters)).Info("semantic clustering done")

	ag := conflict.Aggregator{
		Detector:    conflict.Detector{Classifier: p.classifier, Threshold: params.Threshold},
		Workers:     p.cfg.Pipeline.Workers,
		PairTimeout: p.cfg.PairTimeout(),
	}
	if params.SimilarityGate {
		ag.Vectors, ag.Members, ag.MinSimilarity = clustering.Vectors, clustering.Members, params.SimilarityThreshold
	}
	agg, err := ag.Aggregate(ctx, rep.Clusters)
	if err != nil {
		return nil, err
	}
	rep.Conflicts = agg.Conflicts
	rep.Pairs = PairStats{Evaluated: agg.Evaluated, Failed: agg.Failed, SkippedDissimilar: agg.SkippedDissimilar}
	if agg.Failed > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d of %d pairs excluded after classifier errors", agg.Failed, agg.Evaluated))
	}
	if agg.Unavailable {
		rep.Status = StatusClassifierUnavailable
		rep.Warnings = append(rep.Warnings, "no conflicts detected due to classifier unavailability")
	}
	logger.WithFields(log.Fields{
		"conflicts": len(rep.Conflicts),
		"evaluated": agg.Evaluated,
		"failed":    agg.Failed,
		"threshold": params.Threshold,
	}).Info("conflict detection done")
	return rep, nil
}

// Evaluate attaches precision/recall against a labelled conflict set.
func (rep *Report) Evaluate(truth []conflict.ConflictPair) {
	m := conflict.Evaluate(truth, rep.Conflicts)
	rep.Metrics = &m
}
