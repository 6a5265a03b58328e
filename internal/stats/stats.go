// Package stats folds terminal matches into per-player cumulative
// statistics and ratings. Accumulation is idempotent per match id so a
// persistence retry can replay it safely.
package stats

import (
	"time"

	"okinoko-rps/internal/game"
	"okinoko-rps/internal/match"
)

// MoveTally counts how often a move was thrown and how often it took
// a round.
type MoveTally struct {
	Thrown int `json:"thrown"`
	Won    int `json:"won"`
}

// PlayerStats is one player's cumulative record. Rating lives here so
// SaveCompletedMatch covers it atomically with the counters.
type PlayerStats struct {
	PlayerID string `json:"playerId"`

	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`
	GamesLost   int `json:"gamesLost"`
	GamesDrawn  int `json:"gamesDrawn"`

	Rock     MoveTally `json:"rock"`
	Paper    MoveTally `json:"paper"`
	Scissors MoveTally `json:"scissors"`

	CurrentWinStreak  int `json:"currentWinStreak"`
	BestWinStreak     int `json:"bestWinStreak"`
	CurrentLossStreak int `json:"currentLossStreak"`
	WorstLossStreak   int `json:"worstLossStreak"`

	LastGameAt time.Time `json:"lastGameAt"`
	LastWinAt  time.Time `json:"lastWinAt,omitempty"`

	Rating int `json:"rating"`

	// LastMatchID is the dedupe marker for idempotent accumulation.
	LastMatchID string `json:"lastMatchId,omitempty"`

	// Version is the optimistic-concurrency token for persistence.
	Version uint64 `json:"version"`
}

// NewPlayerStats returns a zeroed record seeded with the configured
// starting rating.
func NewPlayerStats(playerID string, ratingSeed int) *PlayerStats {
	return &PlayerStats{PlayerID: playerID, Rating: ratingSeed}
}

func (s *PlayerStats) tally(m game.Move) *MoveTally {
	switch m {
	case game.Rock:
		return &s.Rock
	case game.Paper:
		return &s.Paper
	case game.Scissors:
		return &s.Scissors
	default:
		return nil
	}
}

// RatingParams are the configured rating-update constants.
type RatingParams struct {
	K     float64
	Floor int
}

// Accumulate folds a terminal match into both players' stats. The
// match must be Completed or TimedOut; TimedOut counts as a played
// draw for both sides. Replaying a match either side has already
// recorded is a no-op.
func Accumulate(p1, p2 *PlayerStats, m *match.Match, params RatingParams) {
	if p1.LastMatchID == m.ID || p2.LastMatchID == m.ID {
		return
	}

	outcome := m.OutcomeFor(m.Player1)

	d1, d2 := game.RatingDelta(p1.Rating, p2.Rating, outcome, params.K)
	p1.Rating = game.ApplyRating(p1.Rating, d1, params.Floor)
	p2.Rating = game.ApplyRating(p2.Rating, d2, params.Floor)

	applyOne(p1, m, outcome, true)
	applyOne(p2, m, outcome.Flip(), false)
}

func applyOne(s *PlayerStats, m *match.Match, outcome game.Outcome, isP1 bool) {
	s.GamesPlayed++
	switch outcome {
	case game.P1Win:
		s.GamesWon++
		s.CurrentWinStreak++
		s.CurrentLossStreak = 0
		if s.CurrentWinStreak > s.BestWinStreak {
			s.BestWinStreak = s.CurrentWinStreak
		}
		s.LastWinAt = m.CompletedAt
	case game.P2Win:
		s.GamesLost++
		s.CurrentLossStreak++
		s.CurrentWinStreak = 0
		if s.CurrentLossStreak > s.WorstLossStreak {
			s.WorstLossStreak = s.CurrentLossStreak
		}
	default:
		// Draws freeze both streaks.
		s.GamesDrawn++
	}
	s.LastGameAt = m.CompletedAt
	s.LastMatchID = m.ID

	for _, r := range m.Rounds {
		mv, won := r.P1Move, r.Outcome == game.P1Win
		if !isP1 {
			mv, won = r.P2Move, r.Outcome == game.P2Win
		}
		t := s.tally(mv)
		if t == nil {
			// Forfeited round; the absent player threw nothing.
			continue
		}
		t.Thrown++
		if won {
			t.Won++
		}
	}
}
