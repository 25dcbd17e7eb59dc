package scoring

import (
	"fmt"
	"math"
)

type Tier int

const (
	Poor Tier = iota
	Fair
	Good
	Excellent
)

func (t Tier) String() string {
	switch t {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Fair:
		return "fair"
	default:
		return "poor"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Thresholds are inclusive lower bounds, in percent, of each tier.
type Thresholds struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 80, Good: 60, Fair: 40}
}

func (th Thresholds) Classify(scorePercent int) Tier {
	switch {
	case scorePercent >= th.Excellent:
		return Excellent
	case scorePercent >= th.Good:
		return Good
	case scorePercent >= th.Fair:
		return Fair
	default:
		return Poor
	}
}

// percentTolerance absorbs float32 representation error (0.29 is stored as
// 0.28999999) without lifting genuinely lower scores into the next percent.
const percentTolerance = 1e-5

// ScorePercent converts a probability to whole percent, truncating and
// clamping to [0,100].
func ScorePercent(p float32) int {
	pct := math.Floor(float64(p)*100 + percentTolerance)
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// DefaultTargetIndex is used in lenient mode when the target label is absent.
const DefaultTargetIndex = 0

type Options struct {
	TopK       int
	Thresholds Thresholds
	// Strict rejects unknown target labels instead of falling back to
	// DefaultTargetIndex.
	Strict bool
}

func DefaultOptions() Options {
	return Options{TopK: 3, Thresholds: DefaultThresholds()}
}

type Verdict struct {
	TargetLabel       string       `json:"target_label"`
	TargetIndex       int          `json:"target_index"`
	TargetProbability float32      `json:"target_probability"`
	ScorePercent      int          `json:"score_percent"`
	Tier              Tier         `json:"tier"`
	Predicted         string       `json:"predicted"`
	Matched           bool         `json:"matched"`
	Ranked            []ClassScore `json:"ranked"`

	// LabelFallback is set when the target was not found and TargetIndex
	// holds the lenient default instead.
	LabelFallback bool `json:"label_fallback,omitempty"`
}

// NewVerdict grades the target label's score and ranks the top candidates.
func NewVerdict(scores []float32, labels []string, target string, opts Options) (Verdict, error) {
	n := min(len(scores), len(labels))
	if n == 0 {
		return Verdict{}, fmt.Errorf("%w: no scored labels", ErrInvalidScores)
	}

	idx := IndexOf(labels, target)
	fallback := idx < 0 || idx >= n
	if fallback {
		if opts.Strict {
			return Verdict{}, fmt.Errorf("%w: %q", ErrUnknownLabel, target)
		}
		idx = DefaultTargetIndex
	}

	p := scores[idx]
	pct := ScorePercent(p)
	best := ArgMax(scores[:n])

	return Verdict{
		TargetLabel:       target,
		TargetIndex:       idx,
		TargetProbability: p,
		ScorePercent:      pct,
		Tier:              opts.Thresholds.Classify(pct),
		Predicted:         labels[best],
		Matched:           !fallback && best == idx,
		LabelFallback:     fallback,
		Ranked:            Rank(scores, labels, opts.TopK),
	}, nil
}

func IndexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
