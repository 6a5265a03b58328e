package match

import (
	"time"

	"okinoko-rps/internal/game"
)

// Mode controls matchmaking visibility.
type Mode uint8

const (
	// Quick matches are visible to the open join queue.
	Quick Mode = 1
	// Private matches can only be joined with the match id.
	Private Mode = 2
)

func (m Mode) String() string {
	if m == Private {
		return "private"
	}
	return "quick"
}

// State is the lifecycle position of a match.
type State uint8

const (
	AwaitingOpponent State = 1
	AwaitingMoves    State = 2
	Completed        State = 3
	Cancelled        State = 4
	TimedOut         State = 5
)

func (s State) String() string {
	switch s {
	case AwaitingOpponent:
		return "awaiting_opponent"
	case AwaitingMoves:
		return "awaiting_moves"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == TimedOut
}

// EndReason records how a terminal state was reached.
type EndReason string

const (
	EndByScore   EndReason = "score"          // a player reached roundsToWin
	EndByForfeit EndReason = "round_forfeit"  // deadline forfeit decided the final round
	EndByResign  EndReason = "resign"         // a participant conceded
	EndByTimeout EndReason = "double_timeout" // neither player moved before the deadline
	EndByCancel  EndReason = "cancelled"
)

// Round is one resolved pair of moves. A forfeited round records
// MoveNone for the absent player.
type Round struct {
	P1Move      game.Move    `json:"p1Move"`
	P2Move      game.Move    `json:"p2Move"`
	Outcome     game.Outcome `json:"outcome"`
	CompletedAt time.Time    `json:"completedAt"`
}

// Match is the full per-match state. It is owned by the registry; all
// mutation happens through the transition methods while the caller
// holds the per-match lock.
type Match struct {
	ID          string
	Mode        Mode
	BestOf      int
	RoundsToWin int

	Player1 string
	Player2 string // empty until an opponent joins

	State     State
	EndReason EndReason

	// Current-round slots, cleared on every resolution.
	P1Move game.Move
	P2Move game.Move

	P1Score int
	P2Score int
	Rounds  []Round

	// DeadlineAt/Epoch guard the current round's move window. Epoch
	// increments every time a deadline is armed; stale scheduler
	// firings carry an old epoch and are discarded.
	DeadlineAt  time.Time
	Epoch       uint64
	MoveTimeout time.Duration

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	WinnerID    string

	// Version is the optimistic-concurrency token for persistence.
	Version uint64
}

// IsParticipant reports whether id plays in this match.
func (m *Match) IsParticipant(id string) bool {
	return id == m.Player1 || (m.Player2 != "" && id == m.Player2)
}

// Opponent returns the other participant, or "" if none.
func (m *Match) Opponent(id string) string {
	switch id {
	case m.Player1:
		return m.Player2
	case m.Player2:
		return m.Player1
	default:
		return ""
	}
}

// OutcomeFor maps the terminal result to one player's perspective.
// TimedOut matches count as draws.
func (m *Match) OutcomeFor(playerID string) game.Outcome {
	switch {
	case m.WinnerID == "":
		return game.Draw
	case m.WinnerID == playerID:
		return game.P1Win
	default:
		return game.P2Win
	}
}

// DrawRounds counts the non-decisive entries in the round history.
func (m *Match) DrawRounds() int {
	n := 0
	for _, r := range m.Rounds {
		if r.Outcome == game.Draw {
			n++
		}
	}
	return n
}
