package scoring_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Brownie44l1/hwr-api/internal/scoring"
)

var labels = []string{"あ", "い", "う", "え", "お"}

func TestRank_SortedAndTruncated(t *testing.T) {
	scores := []float32{0.1, 0.5, 0.05, 0.3, 0.05}

	ranked := scoring.Rank(scores, labels, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, []scoring.ClassScore{
		{Label: "い", Probability: 0.5},
		{Label: "え", Probability: 0.3},
		{Label: "あ", Probability: 0.1},
	}, ranked)
}

func TestRank_LengthIsMinOfKAndLabels(t *testing.T) {
	scores := []float32{0.2, 0.2, 0.2, 0.2, 0.2}
	for _, tc := range []struct{ k, want int }{{0, 0}, {1, 1}, {3, 3}, {5, 5}, {10, 5}, {-1, 0}} {
		assert.Len(t, scoring.Rank(scores, labels, tc.k), tc.want, "k=%d", tc.k)
	}
}

func TestRank_StableOnTies(t *testing.T) {
	scores := []float32{0.2, 0.4, 0.2, 0.4, 0.2}

	ranked := scoring.Rank(scores, labels, 5)
	got := make([]string, len(ranked))
	for i, r := range ranked {
		got[i] = r.Label
	}
	assert.Equal(t, []string{"い", "え", "あ", "う", "お"}, got)
}

func TestRank_ExtraScoresIgnored(t *testing.T) {
	scores := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.9, 0.9}
	ranked := scoring.Rank(scores, labels, 3)
	assert.Equal(t, "お", ranked[0].Label, "scores beyond the label set have no label")
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	scores := []float32{0.1, 0.5, 0.3}
	scoring.Rank(scores, labels[:3], 3)
	assert.Equal(t, []float32{0.1, 0.5, 0.3}, scores)
}

func TestArgMax_FirstMaximum(t *testing.T) {
	assert.Equal(t, -1, scoring.ArgMax(nil))
	assert.Equal(t, 1, scoring.ArgMax([]float32{0.1, 0.7, 0.7}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, scoring.Validate([]float32{0.1, 2.5, -1}, 3), "scores need not sum to one")
	assert.ErrorIs(t, scoring.Validate(nil, 0), scoring.ErrInvalidScores)
	assert.ErrorIs(t, scoring.Validate([]float32{0.1}, 3), scoring.ErrInvalidScores)
	assert.ErrorIs(t, scoring.Validate([]float32{0.1, float32(math.NaN())}, 2), scoring.ErrInvalidScores)
	assert.ErrorIs(t, scoring.Validate([]float32{float32(math.Inf(1))}, 1), scoring.ErrInvalidScores)
	assert.ErrorIs(t, scoring.Validate([]float32{float32(math.Inf(-1))}, 0), scoring.ErrInvalidScores)
}

func TestScorePercent(t *testing.T) {
	cases := []struct {
		p    float32
		want int
	}{
		{0, 0},
		{0.29, 29},
		{0.3999, 39},
		{0.4, 40},
		{0.6, 60},
		{0.79999, 79},
		{0.8, 80},
		{1, 100},
		{1.7, 100},
		{-0.2, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, scoring.ScorePercent(tc.p), "p=%v", tc.p)
	}
}

func TestTierJSON(t *testing.T) {
	b, err := json.Marshal(map[string]scoring.Tier{"tier": scoring.Good})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"good"}`, string(b))
}

// VerdictSuite covers tier boundaries and target label handling.
type VerdictSuite struct {
	suite.Suite
	opts scoring.Options
}

func (s *VerdictSuite) SetupTest() {
	s.opts = scoring.DefaultOptions()
}

func (s *VerdictSuite) verdictFor(p float32) scoring.Verdict {
	scores := []float32{p, 0.01, 0.01, 0.01, 0.01}
	v, err := scoring.NewVerdict(scores, labels, "あ", s.opts)
	s.Require().NoError(err)
	return v
}

func (s *VerdictSuite) TestTierBoundaries() {
	cases := []struct {
		p    float32
		tier scoring.Tier
	}{
		{1.0, scoring.Excellent},
		{0.80, scoring.Excellent},
		{0.79999, scoring.Good},
		{0.60, scoring.Good},
		{0.5999, scoring.Fair},
		{0.40, scoring.Fair},
		{0.3999, scoring.Poor},
		{0.0, scoring.Poor},
	}
	for _, tc := range cases {
		s.Equal(tc.tier, s.verdictFor(tc.p).Tier, "p=%v", tc.p)
	}
}

func (s *VerdictSuite) TestCustomThresholds() {
	s.opts.Thresholds = scoring.Thresholds{Excellent: 90, Good: 70, Fair: 50}
	s.Equal(scoring.Good, s.verdictFor(0.85).Tier)
	s.Equal(scoring.Poor, s.verdictFor(0.45).Tier)
}

func (s *VerdictSuite) TestMatchedPrediction() {
	v, err := scoring.NewVerdict([]float32{0.1, 0.8, 0.05, 0.03, 0.02}, labels, "い", s.opts)
	s.Require().NoError(err)

	s.Equal("い", v.TargetLabel)
	s.Equal(1, v.TargetIndex)
	s.Equal(float32(0.8), v.TargetProbability)
	s.Equal(80, v.ScorePercent)
	s.Equal("い", v.Predicted)
	s.True(v.Matched)
	s.False(v.LabelFallback)
	s.Len(v.Ranked, 3)
	s.Equal("い", v.Ranked[0].Label)
}

func (s *VerdictSuite) TestMismatchedPrediction() {
	v, err := scoring.NewVerdict([]float32{0.1, 0.2, 0.6, 0.05, 0.05}, labels, "い", s.opts)
	s.Require().NoError(err)

	s.Equal("う", v.Predicted)
	s.False(v.Matched)
	s.Equal(scoring.Poor, v.Tier)
}

func (s *VerdictSuite) TestUnknownLabelLenient() {
	v, err := scoring.NewVerdict([]float32{0.9, 0.05, 0.02, 0.02, 0.01}, labels, "ん", s.opts)
	s.Require().NoError(err)

	s.Equal("ん", v.TargetLabel)
	s.Equal(scoring.DefaultTargetIndex, v.TargetIndex)
	s.Equal(float32(0.9), v.TargetProbability)
	s.True(v.LabelFallback)
	s.False(v.Matched)
}

func (s *VerdictSuite) TestUnknownLabelStrict() {
	s.opts.Strict = true
	_, err := scoring.NewVerdict([]float32{0.9, 0.05, 0.02, 0.02, 0.01}, labels, "ん", s.opts)
	s.ErrorIs(err, scoring.ErrUnknownLabel)
}

func (s *VerdictSuite) TestLabelBeyondScores() {
	// Only three scores for five labels: "お" has no score.
	v, err := scoring.NewVerdict([]float32{0.2, 0.3, 0.5}, labels, "お", s.opts)
	s.Require().NoError(err)
	s.True(v.LabelFallback)
	s.Equal(scoring.DefaultTargetIndex, v.TargetIndex)
}

func (s *VerdictSuite) TestEmptyScores() {
	_, err := scoring.NewVerdict(nil, labels, "あ", s.opts)
	s.ErrorIs(err, scoring.ErrInvalidScores)
}

func TestVerdictSuite(t *testing.T) {
	suite.Run(t, new(VerdictSuite))
}
