package stats

import "time"

// View is the caller-visible stats projection.
type View struct {
	PlayerID    string  `json:"playerId"`
	GamesPlayed int     `json:"gamesPlayed"`
	GamesWon    int     `json:"gamesWon"`
	GamesLost   int     `json:"gamesLost"`
	GamesDrawn  int     `json:"gamesDrawn"`
	WinRatePct  float64 `json:"winRatePct"`

	CurrentWinStreak  int `json:"currentWinStreak"`
	BestWinStreak     int `json:"bestWinStreak"`
	CurrentLossStreak int `json:"currentLossStreak"`
	WorstLossStreak   int `json:"worstLossStreak"`

	MostPlayedMove string `json:"mostPlayedMove,omitempty"`
	Rating         int    `json:"rating"`
	RankLabel      string `json:"rankLabel"`

	LastGameAt time.Time `json:"lastGameAt,omitempty"`
	LastWinAt  time.Time `json:"lastWinAt,omitempty"`
}

// rankBands maps rating thresholds to labels, highest first.
var rankBands = []struct {
	min   int
	label string
}{
	{1800, "Grandmaster"},
	{1600, "Master"},
	{1400, "Expert"},
	{1200, "Contender"},
	{1000, "Apprentice"},
	{0, "Novice"},
}

// RankLabel returns the band label for a rating.
func RankLabel(rating int) string {
	for _, b := range rankBands {
		if rating >= b.min {
			return b.label
		}
	}
	return "Novice"
}

// BuildView derives the presentation projection from a stats record.
func BuildView(s *PlayerStats) *View {
	v := &View{
		PlayerID:          s.PlayerID,
		GamesPlayed:       s.GamesPlayed,
		GamesWon:          s.GamesWon,
		GamesLost:         s.GamesLost,
		GamesDrawn:        s.GamesDrawn,
		CurrentWinStreak:  s.CurrentWinStreak,
		BestWinStreak:     s.BestWinStreak,
		CurrentLossStreak: s.CurrentLossStreak,
		WorstLossStreak:   s.WorstLossStreak,
		Rating:            s.Rating,
		RankLabel:         RankLabel(s.Rating),
		LastGameAt:        s.LastGameAt,
		LastWinAt:         s.LastWinAt,
	}
	if s.GamesPlayed > 0 {
		v.WinRatePct = 100 * float64(s.GamesWon) / float64(s.GamesPlayed)
	}
	v.MostPlayedMove = mostPlayed(s)
	return v
}

func mostPlayed(s *PlayerStats) string {
	best, n := "", 0
	for _, c := range []struct {
		name  string
		tally MoveTally
	}{
		{"rock", s.Rock},
		{"paper", s.Paper},
		{"scissors", s.Scissors},
	} {
		if c.tally.Thrown > n {
			best, n = c.name, c.tally.Thrown
		}
	}
	return best
}
