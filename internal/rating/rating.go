// Package rating implements the skill-rating engine for duels. It is a pure
// function of the two ratings and the outcome; persistence is the caller's
// concern.
package rating

import (
	"math"

	"github.com/atlasguess/atlasguess/internal/model"
)

// Outcome is the result of a duel from the first party's perspective
type Outcome int

const (
	Loss Outcome = iota
	Win
	Draw
)

const (
	// Min and Max bound every rating after clamping
	Min = 100
	Max = 10000

	// Initial is the rating assigned to new accounts
	Initial = 1000

	// kFactor scales rating movement per match
	kFactor = 32
	// expScale is the rating-difference scale in the expected-score curve
	expScale = 400

	// boostThreshold is the rating under which a win's gain is quadrupled,
	// pulling new players out of the beginner band faster
	boostThreshold = 2000
	boostFactor    = 4
)

// score returns the actual match score for an outcome
func (o Outcome) score() float64 {
	switch o {
	case Win:
		return 1
	case Draw:
		return 0.5
	default:
		return 0
	}
}

// invert returns the outcome from the other party's perspective
func (o Outcome) invert() Outcome {
	switch o {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Draw
	}
}

// expected returns the expected score of a player rated a against b
func expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/expScale))
}

// delta computes one party's rating change. A result at or below expectation
// never raises a rating; a win under the boost threshold gains quadruple.
func delta(own, opp int, outcome Outcome) int {
	s := outcome.score()
	e := expected(own, opp)

	d := kFactor * (s - e)
	if s <= e && d > 0 {
		d = 0
	}
	if outcome == Win && own < boostThreshold && d > 0 {
		d *= boostFactor
	}
	return int(math.Round(d))
}

// clamp bounds a rating to the closed range [Min, Max]
func clamp(r int) int {
	if r < Min {
		return Min
	}
	if r > Max {
		return Max
	}
	return r
}

// Apply returns the post-match ratings for both parties given the outcome
// for the first party
func Apply(a, b int, outcome Outcome) (newA, newB int) {
	newA = clamp(a + delta(a, b, outcome))
	newB = clamp(b + delta(b, a, outcome.invert()))
	return newA, newB
}

// Outcomes precomputes all three possible results for a pairing so the
// eventual application at session end is O(1)
func Outcomes(p1, p2 int) *model.DuelOutcomes {
	w1a, w1b := Apply(p1, p2, Win)
	l1a, l1b := Apply(p1, p2, Loss)
	d1a, d1b := Apply(p1, p2, Draw)
	return &model.DuelOutcomes{
		P1Wins: model.RatingPair{P1: w1a, P2: w1b},
		P2Wins: model.RatingPair{P1: l1a, P2: l1b},
		Draw:   model.RatingPair{P1: d1a, P2: d1b},
	}
}

// League maps a rating to its display league
func League(r int) string {
	switch {
	case r < 2000:
		return "beginner"
	case r < 4000:
		return "bronze"
	case r < 6000:
		return "silver"
	case r < 8000:
		return "gold"
	default:
		return "platinum"
	}
}
