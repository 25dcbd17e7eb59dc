// Package scoring turns raw classifier output into ranked candidates and a
// graded verdict for a target label.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrUnknownLabel  = errors.New("target label not in label set")
	ErrInvalidScores = errors.New("invalid classifier scores")
)

type ClassScore struct {
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// Rank pairs scores with labels by index and returns the k best, highest
// first. Equal scores keep their label order.
func Rank(scores []float32, labels []string, k int) []ClassScore {
	n := min(len(scores), len(labels))
	ranked := make([]ClassScore, n)
	for i := 0; i < n; i++ {
		ranked[i] = ClassScore{Label: labels[i], Probability: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})
	return ranked[:clamp(k, 0, n)]
}

// ArgMax returns the index of the first maximal score, or -1 when empty.
func ArgMax(scores []float32) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}

// Validate checks that a score vector has the expected length and holds only
// finite values. Scores are relative confidences and need not sum to 1.
func Validate(scores []float32, want int) error {
	if len(scores) == 0 {
		return fmt.Errorf("%w: empty output", ErrInvalidScores)
	}
	if want > 0 && len(scores) != want {
		return fmt.Errorf("%w: expected %d values, got %d", ErrInvalidScores, want, len(scores))
	}
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = float64(s)
	}
	if floats.HasNaN(values) {
		return fmt.Errorf("%w: NaN in output", ErrInvalidScores)
	}
	if math.IsInf(floats.Max(values), 1) || math.IsInf(floats.Min(values), -1) {
		return fmt.Errorf("%w: infinite value in output", ErrInvalidScores)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
