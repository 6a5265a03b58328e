package match

import (
	"fmt"
	"time"

	"okinoko-rps/internal/game"
)

// Absolute bestOf bounds. The configured cap may tighten the upper
// bound but never exceeds it.
const (
	MinBestOf = 1
	MaxBestOf = 11
)

// New creates a match awaiting an opponent. bestOf must be odd and
// within [MinBestOf, MaxBestOf]; callers apply the configured cap.
func New(id, player1 string, mode Mode, bestOf int, moveTimeout time.Duration, now time.Time) (*Match, error) {
	if player1 == "" {
		return nil, E(KindInvalidArgument, "missing player id")
	}
	if bestOf < MinBestOf || bestOf > MaxBestOf || bestOf%2 == 0 {
		return nil, E(KindInvalidArgument, fmt.Sprintf("bestOf must be odd and within %d..%d", MinBestOf, MaxBestOf))
	}
	return &Match{
		ID:          id,
		Mode:        mode,
		BestOf:      bestOf,
		RoundsToWin: bestOf/2 + 1,
		Player1:     player1,
		State:       AwaitingOpponent,
		MoveTimeout: moveTimeout,
		CreatedAt:   now,
		Version:     1,
	}, nil
}

// Join seats the second player and opens the first round.
func (m *Match) Join(player2 string, now time.Time) error {
	if m.State != AwaitingOpponent {
		return E(KindIllegalState, "match is "+m.State.String())
	}
	if player2 == m.Player1 {
		return E(KindSelfJoin, "cannot join own match")
	}
	if player2 == "" {
		return E(KindInvalidArgument, "missing player id")
	}
	m.Player2 = player2
	m.State = AwaitingMoves
	m.StartedAt = now
	m.armDeadline(now)
	m.Version++
	return nil
}

// SubmitMove fills the caller's slot for the current round. When both
// slots are in, the round resolves atomically within the same call.
func (m *Match) SubmitMove(playerID string, mv game.Move, now time.Time) error {
	if m.State != AwaitingMoves {
		return E(KindIllegalState, "match is "+m.State.String())
	}
	if !m.IsParticipant(playerID) {
		return E(KindNotParticipant, "not in this match")
	}
	if !mv.Valid() {
		return E(KindInvalidArgument, "invalid move")
	}
	if !now.Before(m.DeadlineAt) {
		return E(KindDeadlineExceeded, "round deadline passed")
	}
	switch playerID {
	case m.Player1:
		if m.P1Move != game.MoveNone {
			return E(KindDoubleSubmit, "move already submitted")
		}
		m.P1Move = mv
	default:
		if m.P2Move != game.MoveNone {
			return E(KindDoubleSubmit, "move already submitted")
		}
		m.P2Move = mv
	}
	m.Version++
	if m.P1Move != game.MoveNone && m.P2Move != game.MoveNone {
		m.resolveRound(now)
	}
	return nil
}

// OnDeadline applies the timeout policy for the round guarded by
// epoch. Stale epochs and terminal states report false and change
// nothing.
func (m *Match) OnDeadline(epoch uint64, now time.Time) bool {
	if m.State != AwaitingMoves || epoch != m.Epoch {
		return false
	}
	submitted := m.P1Move != game.MoveNone || m.P2Move != game.MoveNone
	if !submitted {
		// Neither player moved: the whole match times out with no winner.
		m.State = TimedOut
		m.EndReason = EndByTimeout
		m.CompletedAt = now
		m.DeadlineAt = time.Time{}
		m.Version++
		return true
	}
	// Exactly one player moved; the absent player forfeits the round.
	outcome := game.P1Win
	if m.P1Move == game.MoveNone {
		outcome = game.P2Win
	}
	m.Rounds = append(m.Rounds, Round{
		P1Move:      m.P1Move,
		P2Move:      m.P2Move,
		Outcome:     outcome,
		CompletedAt: now,
	})
	m.advanceScore(outcome, EndByForfeit, now)
	m.Version++
	return true
}

// Cancel aborts a match that has not finished. The command surface
// restricts caller-initiated cancels to AwaitingOpponent; the relaxed
// precondition here covers administrative aborts.
func (m *Match) Cancel(now time.Time) error {
	if m.State.Terminal() {
		return E(KindIllegalState, "match is "+m.State.String())
	}
	m.State = Cancelled
	m.EndReason = EndByCancel
	m.CompletedAt = now
	m.DeadlineAt = time.Time{}
	m.P1Move, m.P2Move = game.MoveNone, game.MoveNone
	m.Version++
	return nil
}

// Resign concedes an in-progress match; the opponent wins. The
// winner's score jumps to roundsToWin so the completed shape holds
// regardless of the standings at concession.
func (m *Match) Resign(playerID string, now time.Time) error {
	if m.State != AwaitingMoves {
		return E(KindIllegalState, "match is "+m.State.String())
	}
	if !m.IsParticipant(playerID) {
		return E(KindNotParticipant, "not in this match")
	}
	winner := m.Opponent(playerID)
	if winner == m.Player1 {
		m.P1Score = m.RoundsToWin
	} else {
		m.P2Score = m.RoundsToWin
	}
	m.complete(winner, EndByResign, now)
	m.Version++
	return nil
}

// resolveRound consumes both slots. Draws append to history and replay
// with a fresh deadline; decisive rounds advance the winner's score.
func (m *Match) resolveRound(now time.Time) {
	outcome := game.Resolve(m.P1Move, m.P2Move)
	m.Rounds = append(m.Rounds, Round{
		P1Move:      m.P1Move,
		P2Move:      m.P2Move,
		Outcome:     outcome,
		CompletedAt: now,
	})
	if outcome == game.Draw {
		m.P1Move, m.P2Move = game.MoveNone, game.MoveNone
		m.armDeadline(now)
		return
	}
	m.advanceScore(outcome, EndByScore, now)
}

// advanceScore credits a decisive round and either completes the match
// or opens the next round.
func (m *Match) advanceScore(outcome game.Outcome, reason EndReason, now time.Time) {
	winner := m.Player1
	score := &m.P1Score
	if outcome == game.P2Win {
		winner = m.Player2
		score = &m.P2Score
	}
	*score++
	if *score >= m.RoundsToWin {
		m.complete(winner, reason, now)
		return
	}
	m.P1Move, m.P2Move = game.MoveNone, game.MoveNone
	m.armDeadline(now)
}

func (m *Match) complete(winnerID string, reason EndReason, now time.Time) {
	m.State = Completed
	m.WinnerID = winnerID
	m.EndReason = reason
	m.CompletedAt = now
	m.DeadlineAt = time.Time{}
	m.P1Move, m.P2Move = game.MoveNone, game.MoveNone
}

func (m *Match) armDeadline(now time.Time) {
	m.Epoch++
	m.DeadlineAt = now.Add(m.MoveTimeout)
}
