package registry

import (
	"go.uber.org/zap"

	"okinoko-rps/internal/match"
)

// Lifecycle events are emitted as structured log records, one per
// externally visible transition.

func emitMatchCreated(log *zap.Logger, m *match.Match) {
	log.Info("match created",
		zap.String("matchId", m.ID),
		zap.String("mode", m.Mode.String()),
		zap.Int("bestOf", m.BestOf),
		zap.String("player1", m.Player1),
	)
}

func emitMatchJoined(log *zap.Logger, m *match.Match) {
	log.Info("match joined",
		zap.String("matchId", m.ID),
		zap.String("player2", m.Player2),
		zap.Time("deadline", m.DeadlineAt),
	)
}

func emitRoundResolved(log *zap.Logger, m *match.Match) {
	last := m.Rounds[len(m.Rounds)-1]
	log.Info("round resolved",
		zap.String("matchId", m.ID),
		zap.Int("round", len(m.Rounds)),
		zap.String("outcome", last.Outcome.String()),
		zap.Int("p1Score", m.P1Score),
		zap.Int("p2Score", m.P2Score),
	)
}

func emitDeadlineFired(log *zap.Logger, m *match.Match, epoch uint64) {
	log.Info("round deadline fired",
		zap.String("matchId", m.ID),
		zap.Uint64("epoch", epoch),
		zap.String("state", m.State.String()),
	)
}

func emitMatchEnded(log *zap.Logger, m *match.Match) {
	log.Info("match ended",
		zap.String("matchId", m.ID),
		zap.String("state", m.State.String()),
		zap.String("reason", string(m.EndReason)),
		zap.String("winnerId", m.WinnerID),
		zap.Int("p1Score", m.P1Score),
		zap.Int("p2Score", m.P2Score),
	)
}

func emitStatsFlushed(log *zap.Logger, m *match.Match) {
	log.Debug("match persisted",
		zap.String("matchId", m.ID),
		zap.String("player1", m.Player1),
		zap.String("player2", m.Player2),
	)
}
