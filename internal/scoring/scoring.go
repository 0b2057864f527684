// Package scoring grades submitted intervals against true values. Every
// function is pure and safe for concurrent use.
package scoring

import "math"

const (
	// BaseScore anchors the precision formula: a hit with relative width 1
	// (interval as wide as the answer's magnitude) scores 50.
	BaseScore = 50.0
	// PrecisionExponent shapes how fast narrower intervals pay off.
	PrecisionExponent = 0.7
	// ExactBonus is the fixed score for a perfect point guess.
	ExactBonus = 10000.0
)

// InBounds reports whether the true value falls inside [lower, upper].
func InBounds(lower, upper, trueValue float64) bool {
	return lower <= trueValue && trueValue <= upper
}

// Score converts an interval and the true value into points. A miss is
// exactly 0; an exact point guess is the fixed bonus; otherwise the score
// grows as the interval narrows relative to the answer's magnitude, rounded
// to one decimal place. Never returns NaN or Inf for finite inputs.
func Score(lower, upper, trueValue float64) float64 {
	if !InBounds(lower, upper, trueValue) {
		return 0
	}
	if lower == upper && lower == trueValue {
		return ExactBonus
	}
	if lower == upper {
		// Unreachable after the hit and exact-guess checks, but keep the
		// degenerate interval from ever dividing by zero: widen by 1% of
		// magnitude, at least 0.01 in absolute terms.
		pad := math.Max(0.01, math.Abs(lower)*0.01)
		lower -= pad
		upper += pad
	}

	width := math.Abs(upper - lower)
	magnitude := math.Max(1, math.Abs(trueValue))
	relativeWidth := width / magnitude
	precision := 1 / math.Pow(relativeWidth, PrecisionExponent)
	return math.Round(BaseScore*precision*10) / 10
}

// TotalScore sums per-question scores for a session.
func TotalScore(scores []float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return total
}
