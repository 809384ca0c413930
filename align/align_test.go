package align

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignScenarioSingleSpeaker(t *testing.T) {
	tr := []TranscriptSegment{{0, 2, "Sales rose 10%"}, {2, 4, "Sales fell 5%"}}
	sp := []SpeakerSegment{{0, 3, "S1"}, {3, 5, "S2"}}

	res, err := Align(context.Background(), tr, sp, Options{})
	require.NoError(t, err)
	require.Len(t, res.Utterances, 2)
	// second segment overlaps S1 and S2 by 1s each; earliest start wins
	assert.Equal(t, "S1", res.Utterances[0].SpeakerID)
	assert.Equal(t, "S1", res.Utterances[1].SpeakerID)
	assert.Empty(t, res.Rejected)
}

func TestAlignMaxOverlapWins(t *testing.T) {
	tr := []TranscriptSegment{{1, 5, "hello"}}
	sp := []SpeakerSegment{{0, 2, "A"}, {2, 6, "B"}}

	res, err := Align(context.Background(), tr, sp, Options{})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Utterances[0].SpeakerID)
}

func TestAlignTieBreakBySpeakerID(t *testing.T) {
	tr := []TranscriptSegment{{0, 2, "x"}}
	sp := []SpeakerSegment{{0, 2, "zed"}, {0, 2, "amy"}}

	res, err := Align(context.Background(), tr, sp, Options{})
	require.NoError(t, err)
	assert.Equal(t, "amy", res.Utterances[0].SpeakerID)
}

func TestAlignDisjointIsUnknown(t *testing.T) {
	tr := []TranscriptSegment{{0, 1, "a"}, {1, 2, "b"}}
	sp := []SpeakerSegment{{10, 12, "S1"}, {2, 3, "S2"}}

	res, err := Align(context.Background(), tr, sp, Options{})
	require.NoError(t, err)
	for _, u := range res.Utterances {
		assert.Equal(t, Unknown, u.SpeakerID)
	}
}

func TestAlignSortsStable(t *testing.T) {
	tr := []TranscriptSegment{
		{5, 6, "late"},
		{1, 2, "first"},
		{1, 3, "second"},
	}
	sp := []SpeakerSegment{{0, 10, "S"}}

	res, err := Align(context.Background(), tr, sp, Options{Workers: 2})
	require.NoError(t, err)
	var texts []string
	for _, u := range res.Utterances {
		texts = append(texts, u.Text)
	}
	assert.Equal(t, []string{"first", "second", "late"}, texts)
	assert.Equal(t, 1.0, res.Utterances[1].Start)
	assert.Equal(t, 3.0, res.Utterances[1].End)
}

func TestAlignRejectsMalformed(t *testing.T) {
	tr := []TranscriptSegment{{0, 2, "ok"}, {3, 3, "zero"}, {5, 4, "negative"}}
	sp := []SpeakerSegment{{0, 2, "S1"}, {1, 1, "bad"}}

	res, err := Align(context.Background(), tr, sp, Options{})
	require.NoError(t, err)
	require.Len(t, res.Utterances, 1)
	require.Len(t, res.Rejected, 3)
	for _, r := range res.Rejected {
		assert.True(t, errors.Is(r, ErrMalformedSegment))
	}
	assert.Equal(t, "transcript", res.Rejected[0].Kind)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, "speaker", res.Rejected[2].Kind)
}

func TestAlignEmptyInput(t *testing.T) {
	_, err := Align(context.Background(), nil, []SpeakerSegment{{0, 1, "S"}}, Options{})
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = Align(context.Background(), []TranscriptSegment{{0, 1, "t"}}, nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAlignOverlapInvariant(t *testing.T) {
	tr := []TranscriptSegment{{0, 3, "a"}, {2.5, 7, "b"}, {6, 9, "c"}, {12, 13, "d"}}
	sp := []SpeakerSegment{{0, 2.8, "S1"}, {2.7, 6.5, "S2"}, {6.4, 10, "S3"}, {5, 8, "S1"}}

	res, err := Align(context.Background(), tr, sp, Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, res.Utterances, len(tr))
	for _, u := range res.Utterances {
		if u.SpeakerID == Unknown {
			for _, s := range sp {
				assert.Zero(t, overlap(u.Start, u.End, s.Start, s.End))
			}
			continue
		}
		var assigned float64
		for _, s := range sp {
			if s.SpeakerID == u.SpeakerID {
				assigned = max(assigned, overlap(u.Start, u.End, s.Start, s.End))
			}
		}
		assert.Positive(t, assigned)
		for _, s := range sp {
			assert.LessOrEqual(t, overlap(u.Start, u.End, s.Start, s.End), assigned)
		}
	}
}

func TestAlignCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Align(ctx, []TranscriptSegment{{0, 1, "a"}}, []SpeakerSegment{{0, 1, "S"}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
