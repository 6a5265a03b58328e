package game

import "math"

// eloScale is the logistic spread of the expected-score curve.
// 400 points of rating difference ≈ 10:1 expected odds.
const eloScale = 400.0

// RatingDelta computes the signed rating changes for both players after
// a match. Decisive outcomes are zero-sum; draws leave both ratings
// untouched. K is the configured update factor.
func RatingDelta(r1, r2 int, outcome Outcome, k float64) (d1, d2 int) {
	if outcome == Draw {
		return 0, 0
	}
	e1 := expectedScore(r1, r2)
	s1 := 0.0
	if outcome == P1Win {
		s1 = 1.0
	}
	d1 = int(math.Round(k * (s1 - e1)))
	return d1, -d1
}

// ApplyRating adds a delta to a rating and clamps at the configured floor.
func ApplyRating(rating, delta, floor int) int {
	r := rating + delta
	if r < floor {
		return floor
	}
	return r
}

func expectedScore(r1, r2 int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(r2-r1)/eloScale))
}
