package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/conflict"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	run := Run{
		ID:          uuid.NewString(),
		Fingerprint: "abc",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:      "ok",
		Utterances:  2,
		Candidates:  2,
		Conflicts:   1,
		Warnings:    []string{"1 pair excluded"},
		Metrics:     &conflict.Metrics{TruePositives: 1, Precision: 1, Recall: 1, F1: 1},
	}
	utts := []align.AttributedUtterance{
		{Start: 0, End: 2, SpeakerID: "S1", Text: "Sales rose 10%"},
		{Start: 2, End: 4, SpeakerID: "S1", Text: "Sales fell 5%"},
	}
	pairs := []conflict.ConflictPair{{Text1: "Sales rose 10%", Text2: "Sales fell 5%", Probability: 0.96}}
	require.NoError(t, s.SaveRun(ctx, run, utts, pairs))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	gotPairs, err := s.Conflicts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, pairs, gotPairs)

	gotUtts, err := s.Utterances(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, utts, gotUtts)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestByFingerprint(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := Run{ID: uuid.NewString(), Fingerprint: "fp", CreatedAt: base.Add(time.Duration(i) * time.Hour), Status: "ok"}
		require.NoError(t, s.SaveRun(ctx, r, nil, nil))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))
	assert.Nil(t, runs[0].Metrics)

	latest, err := s.LatestByFingerprint(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, runs[0].ID, latest.ID)
}

func TestSaveRunDuplicateIDRollsBack(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	r := Run{ID: "fixed", Fingerprint: "fp", CreatedAt: time.Now(), Status: "ok"}
	require.NoError(t, s.SaveRun(ctx, r, nil, nil))

	err := s.SaveRun(ctx, r, []align.AttributedUtterance{{Start: 0, End: 1, SpeakerID: "S", Text: "x"}}, nil)
	require.Error(t, err)
	utts, err := s.Utterances(ctx, "fixed")
	require.NoError(t, err)
	assert.Empty(t, utts)
}

func TestListRunsSubSecondOrdering(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	older := Run{ID: "older", Fingerprint: "fp", CreatedAt: base.Add(120 * time.Millisecond), Status: "ok"}
	newer := Run{ID: "newer", Fingerprint: "fp", CreatedAt: base.Add(123 * time.Millisecond), Status: "ok"}
	require.NoError(t, s.SaveRun(ctx, older, nil, nil))
	require.NoError(t, s.SaveRun(ctx, newer, nil, nil))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)
	assert.Equal(t, newer.CreatedAt, runs[0].CreatedAt)

	latest, err := s.LatestByFingerprint(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.ID)
}

func TestSaveRunConcurrent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	utts := make([]align.AttributedUtterance, 2000)
	for i := range utts {
		utts[i] = align.AttributedUtterance{Start: float64(i), End: float64(i + 1), SpeakerID: "S1", Text: fmt.Sprintf("line %d", i)}
	}

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := Run{ID: uuid.NewString(), Fingerprint: "fp", CreatedAt: time.Now(), Status: "ok", Utterances: len(utts)}
			errs[i] = s.SaveRun(ctx, r, utts, nil)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "save %d", i)
	}

	runs, err := s.ListRuns(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, runs, n)
}
