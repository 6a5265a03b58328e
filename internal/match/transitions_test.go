package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko-rps/internal/game"
)

const moveWindow = 60 * time.Second

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMatch(t *testing.T, bestOf int) *Match {
	t.Helper()
	m, err := New("m1", "alice", Quick, bestOf, moveWindow, t0)
	require.NoError(t, err)
	return m
}

func joined(t *testing.T, bestOf int) *Match {
	t.Helper()
	m := newTestMatch(t, bestOf)
	require.NoError(t, m.Join("bob", t0))
	return m
}

func TestNewValidation(t *testing.T) {
	for _, bo := range []int{0, 2, 4, 12, 13, -1} {
		_, err := New("m", "alice", Quick, bo, moveWindow, t0)
		assert.ErrorIs(t, err, ErrInvalidArgument, "bestOf=%d", bo)
	}
	m, err := New("m", "alice", Private, 5, moveWindow, t0)
	require.NoError(t, err)
	assert.Equal(t, AwaitingOpponent, m.State)
	assert.Equal(t, 3, m.RoundsToWin)
	assert.True(t, m.DeadlineAt.IsZero())
}

func TestJoinOpensFirstRound(t *testing.T) {
	m := newTestMatch(t, 1)
	require.NoError(t, m.Join("bob", t0))

	assert.Equal(t, AwaitingMoves, m.State)
	assert.Equal(t, "bob", m.Player2)
	assert.Equal(t, t0.Add(moveWindow), m.DeadlineAt)
	assert.Equal(t, uint64(1), m.Epoch)
}

func TestJoinErrors(t *testing.T) {
	m := newTestMatch(t, 1)
	assert.ErrorIs(t, m.Join("alice", t0), ErrSelfJoin)

	require.NoError(t, m.Join("bob", t0))
	assert.ErrorIs(t, m.Join("carol", t0), ErrIllegalState)
}

func TestBestOfOneDecisiveRound(t *testing.T) {
	m := joined(t, 1)
	require.NoError(t, m.SubmitMove("alice", game.Rock, t0.Add(time.Second)))
	require.NoError(t, m.SubmitMove("bob", game.Scissors, t0.Add(2*time.Second)))

	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "alice", m.WinnerID)
	assert.Equal(t, EndByScore, m.EndReason)
	assert.Equal(t, 1, m.P1Score)
	assert.Equal(t, 0, m.P2Score)
	require.Len(t, m.Rounds, 1)
	assert.Equal(t, game.P1Win, m.Rounds[0].Outcome)
	assert.True(t, m.DeadlineAt.IsZero())
	assert.Equal(t, game.MoveNone, m.P1Move)
}

func TestBestOfThreeFullSeries(t *testing.T) {
	m := joined(t, 3)
	rounds := []struct {
		p1, p2 game.Move
	}{
		{game.Rock, game.Rock},         // draw, replay
		{game.Paper, game.Rock},        // 1-0
		{game.Scissors, game.Rock},     // 1-1
		{game.Rock, game.Scissors},     // 2-1, match
	}
	now := t0
	for _, r := range rounds {
		now = now.Add(5 * time.Second)
		require.NoError(t, m.SubmitMove("alice", r.p1, now))
		require.NoError(t, m.SubmitMove("bob", r.p2, now))
	}

	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "alice", m.WinnerID)
	assert.Equal(t, 2, m.P1Score)
	assert.Equal(t, 1, m.P2Score)
	assert.Len(t, m.Rounds, 4)
	assert.Equal(t, 1, m.DrawRounds())
}

func TestDrawReplaysWithFreshDeadline(t *testing.T) {
	m := joined(t, 1)
	epochBefore := m.Epoch
	now := t0.Add(10 * time.Second)
	require.NoError(t, m.SubmitMove("alice", game.Rock, now))
	require.NoError(t, m.SubmitMove("bob", game.Rock, now))

	assert.Equal(t, AwaitingMoves, m.State)
	assert.Equal(t, 0, m.P1Score+m.P2Score)
	assert.Equal(t, now.Add(moveWindow), m.DeadlineAt)
	assert.Equal(t, epochBefore+1, m.Epoch)
	assert.Equal(t, game.MoveNone, m.P1Move)
	assert.Equal(t, game.MoveNone, m.P2Move)
	assert.Len(t, m.Rounds, 1)
}

func TestSubmitMoveErrors(t *testing.T) {
	m := joined(t, 3)

	assert.ErrorIs(t, m.SubmitMove("mallory", game.Rock, t0), ErrNotParticipant)
	assert.ErrorIs(t, m.SubmitMove("alice", game.MoveNone, t0), ErrInvalidArgument)

	require.NoError(t, m.SubmitMove("alice", game.Rock, t0))
	assert.ErrorIs(t, m.SubmitMove("alice", game.Paper, t0), ErrDoubleSubmit)

	late := t0.Add(moveWindow)
	assert.ErrorIs(t, m.SubmitMove("bob", game.Paper, late), ErrDeadlineExceeded)

	fresh := newTestMatch(t, 1)
	assert.ErrorIs(t, fresh.SubmitMove("alice", game.Rock, t0), ErrIllegalState)
}

func TestDeadlineForfeitCompletesMatch(t *testing.T) {
	m := joined(t, 1)
	require.NoError(t, m.SubmitMove("alice", game.Rock, t0.Add(10*time.Second)))

	fired := m.OnDeadline(m.Epoch, t0.Add(moveWindow))
	require.True(t, fired)

	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "alice", m.WinnerID)
	assert.Equal(t, EndByForfeit, m.EndReason)
	assert.Equal(t, 1, m.P1Score)
	require.Len(t, m.Rounds, 1)
	assert.Equal(t, game.MoveNone, m.Rounds[0].P2Move)
	assert.Equal(t, game.P1Win, m.Rounds[0].Outcome)
}

func TestDeadlineForfeitMidSeries(t *testing.T) {
	m := joined(t, 3)
	require.NoError(t, m.SubmitMove("bob", game.Paper, t0.Add(time.Second)))

	fired := m.OnDeadline(m.Epoch, t0.Add(moveWindow))
	require.True(t, fired)

	// Bob takes the round; the series continues with a new deadline.
	assert.Equal(t, AwaitingMoves, m.State)
	assert.Equal(t, 1, m.P2Score)
	assert.Equal(t, t0.Add(moveWindow+moveWindow), m.DeadlineAt)
	assert.Equal(t, game.MoveNone, m.P1Move)
	assert.Equal(t, game.MoveNone, m.P2Move)
}

func TestDeadlineBothAbsentTimesOut(t *testing.T) {
	m := joined(t, 1)
	fired := m.OnDeadline(m.Epoch, t0.Add(moveWindow))
	require.True(t, fired)

	assert.Equal(t, TimedOut, m.State)
	assert.Equal(t, EndByTimeout, m.EndReason)
	assert.Empty(t, m.WinnerID)
	assert.Empty(t, m.Rounds)
	assert.True(t, m.DeadlineAt.IsZero())
}

func TestStaleEpochIgnored(t *testing.T) {
	m := joined(t, 1)
	staleEpoch := m.Epoch

	// Draw resolution arms a fresh deadline with a new epoch.
	require.NoError(t, m.SubmitMove("alice", game.Rock, t0.Add(time.Second)))
	require.NoError(t, m.SubmitMove("bob", game.Rock, t0.Add(2*time.Second)))
	require.NotEqual(t, staleEpoch, m.Epoch)

	versionBefore := m.Version
	assert.False(t, m.OnDeadline(staleEpoch, t0.Add(moveWindow)))
	assert.Equal(t, AwaitingMoves, m.State)
	assert.Equal(t, versionBefore, m.Version)
}

func TestDeadlineOnTerminalMatchIgnored(t *testing.T) {
	m := joined(t, 1)
	epoch := m.Epoch
	require.NoError(t, m.SubmitMove("alice", game.Rock, t0))
	require.NoError(t, m.SubmitMove("bob", game.Scissors, t0))
	require.Equal(t, Completed, m.State)

	assert.False(t, m.OnDeadline(epoch, t0.Add(moveWindow)))
	assert.Equal(t, Completed, m.State)
}

func TestCancel(t *testing.T) {
	m := newTestMatch(t, 1)
	require.NoError(t, m.Cancel(t0.Add(time.Second)))
	assert.Equal(t, Cancelled, m.State)
	assert.Equal(t, EndByCancel, m.EndReason)

	assert.ErrorIs(t, m.Cancel(t0), ErrIllegalState)
	assert.ErrorIs(t, m.Join("bob", t0), ErrIllegalState)
}

func TestResign(t *testing.T) {
	m := joined(t, 3)
	require.NoError(t, m.SubmitMove("alice", game.Rock, t0))

	require.NoError(t, m.Resign("alice", t0.Add(2*time.Second)))
	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "bob", m.WinnerID)
	assert.Equal(t, EndByResign, m.EndReason)
	assert.Equal(t, m.RoundsToWin, m.P2Score)
	assert.Equal(t, 0, m.P1Score)

	assert.ErrorIs(t, m.Resign("bob", t0), ErrIllegalState)

	fresh := newTestMatch(t, 1)
	assert.ErrorIs(t, fresh.Resign("alice", t0), ErrIllegalState)

	active := joined(t, 1)
	assert.ErrorIs(t, active.Resign("mallory", t0), ErrNotParticipant)
}

// Conceding while ahead must still produce a decided score: the
// opponent's tally jumps to roundsToWin, so the winner is the
// higher-scoring player in every completed match.
func TestResignWhileLeading(t *testing.T) {
	m := joined(t, 3)
	require.NoError(t, m.SubmitMove("alice", game.Paper, t0))
	require.NoError(t, m.SubmitMove("bob", game.Rock, t0))
	require.Equal(t, 1, m.P1Score)

	require.NoError(t, m.Resign("alice", t0.Add(time.Second)))

	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "bob", m.WinnerID)
	assert.Equal(t, EndByResign, m.EndReason)
	assert.Equal(t, m.RoundsToWin, m.P2Score)
	assert.Greater(t, m.P2Score, m.P1Score)

	s := Summarize(m)
	assert.Equal(t, "bob", s.WinnerID)
	assert.Equal(t, 1, s.P1Score)
	assert.Equal(t, 2, s.P2Score)
}

// Score bookkeeping invariant: decisive rounds plus draws equals the
// history length for every reachable state.
func TestScoreHistoryInvariant(t *testing.T) {
	m := joined(t, 5)
	seq := []struct {
		p1, p2 game.Move
	}{
		{game.Rock, game.Rock},
		{game.Paper, game.Rock},
		{game.Paper, game.Scissors},
		{game.Scissors, game.Scissors},
		{game.Rock, game.Scissors},
		{game.Rock, game.Paper},
		{game.Paper, game.Rock},
	}
	now := t0
	for _, r := range seq {
		now = now.Add(time.Second)
		require.NoError(t, m.SubmitMove("alice", r.p1, now))
		require.NoError(t, m.SubmitMove("bob", r.p2, now))
		assert.Equal(t, len(m.Rounds), m.P1Score+m.P2Score+m.DrawRounds())
		if m.State.Terminal() {
			break
		}
	}
	assert.Equal(t, Completed, m.State)
	assert.Equal(t, "alice", m.WinnerID)
	assert.Equal(t, 3, m.P1Score)
}
