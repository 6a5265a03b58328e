package match

import (
	"time"

	"okinoko-rps/internal/game"
)

// SelfView is the viewer's own side of a match. The viewer's current
// move is always revealed to themselves.
type SelfView struct {
	PlayerID         string `json:"playerId"`
	Score            int    `json:"score"`
	CurrentRoundMove string `json:"currentRoundMove,omitempty"`
}

// OpponentView is the other side. The opponent's current-round move is
// never included; only the fact that it exists.
type OpponentView struct {
	PlayerID               string `json:"playerId,omitempty"`
	Score                  int    `json:"score"`
	CurrentRoundMoveHidden bool   `json:"currentRoundMoveHidden"`
}

// RoundView is a completed round from the viewer's perspective.
type RoundView struct {
	YourMove     string    `json:"yourMove,omitempty"`
	OpponentMove string    `json:"opponentMove,omitempty"`
	Outcome      string    `json:"outcome"`
	At           time.Time `json:"at"`
}

// View is the caller-visible projection of a match.
type View struct {
	MatchID      string       `json:"matchId"`
	State        string       `json:"state"`
	Mode         string       `json:"mode"`
	BestOf       int          `json:"bestOf"`
	RoundsToWin  int          `json:"roundsToWin"`
	You          SelfView     `json:"you"`
	Opponent     OpponentView `json:"opponent"`
	RoundHistory []RoundView  `json:"roundHistory"`
	Deadline     *time.Time   `json:"deadline,omitempty"`
	WinnerID     string       `json:"winnerId,omitempty"`
	Cancellable  bool         `json:"cancellable"`
}

// BuildView renders a match for one participant. Non-participants are
// rejected; spectating goes through the completed-match cache instead.
func BuildView(m *Match, viewerID string) (*View, error) {
	if !m.IsParticipant(viewerID) {
		return nil, E(KindNotParticipant, "not in this match")
	}
	viewerIsP1 := viewerID == m.Player1

	yourMove, oppMove := m.P1Move, m.P2Move
	yourScore, oppScore := m.P1Score, m.P2Score
	oppID := m.Player2
	if !viewerIsP1 {
		yourMove, oppMove = oppMove, yourMove
		yourScore, oppScore = oppScore, yourScore
		oppID = m.Player1
	}

	v := &View{
		MatchID:     m.ID,
		State:       m.State.String(),
		Mode:        m.Mode.String(),
		BestOf:      m.BestOf,
		RoundsToWin: m.RoundsToWin,
		You: SelfView{
			PlayerID:         viewerID,
			Score:            yourScore,
			CurrentRoundMove: yourMove.String(),
		},
		Opponent: OpponentView{
			PlayerID:               oppID,
			Score:                  oppScore,
			CurrentRoundMoveHidden: oppMove != game.MoveNone,
		},
		WinnerID:    m.WinnerID,
		Cancellable: m.State == AwaitingOpponent,
	}
	if !m.DeadlineAt.IsZero() {
		d := m.DeadlineAt
		v.Deadline = &d
	}
	for _, r := range m.Rounds {
		rv := RoundView{
			YourMove:     r.P1Move.String(),
			OpponentMove: r.P2Move.String(),
			Outcome:      r.Outcome.String(),
			At:           r.CompletedAt,
		}
		if !viewerIsP1 {
			rv.YourMove, rv.OpponentMove = rv.OpponentMove, rv.YourMove
			rv.Outcome = r.Outcome.Flip().String()
		}
		v.RoundHistory = append(v.RoundHistory, rv)
	}
	return v, nil
}

// Summary is the persisted digest of a finished match.
type Summary struct {
	MatchID     string    `json:"matchId"`
	Mode        string    `json:"mode"`
	BestOf      int       `json:"bestOf"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	P1Score     int       `json:"p1Score"`
	P2Score     int       `json:"p2Score"`
	State       string    `json:"state"`
	EndReason   EndReason `json:"endReason"`
	WinnerID    string    `json:"winnerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Summarize digests a terminal match for persistence and history listings.
func Summarize(m *Match) Summary {
	return Summary{
		MatchID:     m.ID,
		Mode:        m.Mode.String(),
		BestOf:      m.BestOf,
		Player1:     m.Player1,
		Player2:     m.Player2,
		P1Score:     m.P1Score,
		P2Score:     m.P2Score,
		State:       m.State.String(),
		EndReason:   m.EndReason,
		WinnerID:    m.WinnerID,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}
