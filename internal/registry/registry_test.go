package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"okinoko-rps/internal/game"
	"okinoko-rps/internal/match"
	"okinoko-rps/internal/repo"
	"okinoko-rps/internal/stats"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *clock.Mock, *repo.Memory) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(t0)
	store := repo.NewMemory(1200)
	r := New(Config{
		MoveTimeout: time.Minute,
		CacheTTL:    5 * time.Minute,
		Rating:      stats.RatingParams{K: 24, Floor: 100},
	}, mock, store, zap.NewNop())
	return r, mock, store
}

func TestCreateJoinSubmitFullFlow(t *testing.T) {
	r, _, store := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_opponent", v.State)
	matchID := v.MatchID

	v, err = r.JoinOpenQuick("bob")
	require.NoError(t, err)
	assert.Equal(t, matchID, v.MatchID)
	assert.Equal(t, "awaiting_moves", v.State)

	_, err = r.Submit("alice", matchID, game.Rock)
	require.NoError(t, err)
	v, err = r.Submit("bob", matchID, game.Scissors)
	require.NoError(t, err)
	assert.Equal(t, "completed", v.State)
	assert.Equal(t, "alice", v.WinnerID)

	// Stats were flushed synchronously after the terminal transition.
	s, err := store.LoadStats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, s.GamesWon)
	assert.Equal(t, 1212, s.Rating)

	// Both players are free for a new match.
	_, busy := r.MatchIDForPlayer("alice")
	assert.False(t, busy)
	_, err = r.Create("alice", match.Quick, 1)
	assert.NoError(t, err)
}

func TestPlayerBusy(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.Create("alice", match.Private, 1)
	assert.ErrorIs(t, err, match.ErrPlayerBusy)

	v, err := r.Create("bob", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("alice", v.MatchID)
	assert.ErrorIs(t, err, match.ErrPlayerBusy)
}

func TestJoinQueueFIFOAndSelfSkip(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v1, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.Create("bob", match.Quick, 1)
	require.NoError(t, err)

	// Alice must not be paired with her own waiting match; with
	// bob's match also open she is simply busy.
	_, err = r.JoinOpenQuick("alice")
	assert.ErrorIs(t, err, match.ErrPlayerBusy)

	// Carol gets the oldest waiting match.
	v, err := r.JoinOpenQuick("carol")
	require.NoError(t, err)
	assert.Equal(t, v1.MatchID, v.MatchID)
}

func TestJoinOpenQuickOwnMatchOnly(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)

	_, err = r.JoinOpenQuick("alice")
	assert.ErrorIs(t, err, match.ErrSelfJoin)

	// The waiting match is untouched.
	got, err := r.Get("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_opponent", got.State)
}

func TestJoinOpenQuickNoMatches(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.JoinOpenQuick("bob")
	assert.ErrorIs(t, err, match.ErrNoMatchAvailable)

	// A waiting private match is not in the open queue.
	_, err = r.Create("alice", match.Private, 1)
	require.NoError(t, err)
	_, err = r.JoinOpenQuick("bob")
	assert.ErrorIs(t, err, match.ErrNoMatchAvailable)
}

func TestPrivateMatchJoinableByID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	v, err := r.Create("alice", match.Private, 3)
	require.NoError(t, err)

	got, err := r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_moves", got.State)
}

func TestDeadlineForfeitViaTimer(t *testing.T) {
	r, mock, store := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	_, err = r.Submit("alice", v.MatchID, game.Rock)
	require.NoError(t, err)

	mock.Add(time.Minute)

	// The match completed by forfeit and was evicted; reads now come
	// from the completed cache.
	got, err := r.Get("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.State)
	assert.Equal(t, "alice", got.WinnerID)

	s, err := store.LoadStats(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, s.GamesLost)
}

func TestDeadlineBothAbsent(t *testing.T) {
	r, mock, store := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	mock.Add(time.Minute)

	got, err := r.Get("bob", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "timed_out", got.State)
	assert.Empty(t, got.WinnerID)

	for _, p := range []string{"alice", "bob"} {
		s, err := store.LoadStats(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, 1, s.GamesPlayed, p)
		assert.Equal(t, 1, s.GamesDrawn, p)
	}
}

func TestDrawRearmsDeadline(t *testing.T) {
	r, mock, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	mock.Add(30 * time.Second)
	_, err = r.Submit("alice", v.MatchID, game.Rock)
	require.NoError(t, err)
	_, err = r.Submit("bob", v.MatchID, game.Rock)
	require.NoError(t, err)

	// The original deadline instant passes without any effect; the
	// draw re-armed the window.
	mock.Add(30 * time.Second)
	got, err := r.Get("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_moves", got.State)

	// The replayed round's own deadline then fires.
	mock.Add(30 * time.Second)
	got, err = r.Get("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "timed_out", got.State)
}

func TestStaleEpochDeliveryIgnored(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 3)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	// Resolve a round so the epoch advances past 1.
	_, err = r.Submit("alice", v.MatchID, game.Rock)
	require.NoError(t, err)
	_, err = r.Submit("bob", v.MatchID, game.Scissors)
	require.NoError(t, err)

	r.handleDeadline(v.MatchID, 1)

	got, err := r.Get("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_moves", got.State)
	assert.Equal(t, 1, got.You.Score)
}

func TestCompletedCacheTTL(t *testing.T) {
	r, mock, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)
	_, err = r.Submit("alice", v.MatchID, game.Paper)
	require.NoError(t, err)
	_, err = r.Submit("bob", v.MatchID, game.Rock)
	require.NoError(t, err)

	_, err = r.Get("bob", v.MatchID)
	require.NoError(t, err)

	mock.Add(6 * time.Minute)
	_, err = r.Get("bob", v.MatchID)
	assert.ErrorIs(t, err, match.ErrNotFound)
}

func TestCancelOnlyWhileWaiting(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)

	_, err = r.CancelByUser("bob", v.MatchID)
	assert.ErrorIs(t, err, match.ErrNotParticipant)

	got, err := r.CancelByUser("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.State)

	// Cancelled matches are not cached for reads and free the player.
	_, err = r.Get("alice", v.MatchID)
	assert.ErrorIs(t, err, match.ErrNotFound)
	_, err = r.Create("alice", match.Quick, 1)
	assert.NoError(t, err)
}

func TestCancelRejectedOnceJoined(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	_, err = r.CancelByUser("alice", v.MatchID)
	assert.ErrorIs(t, err, match.ErrIllegalState)
}

func TestResignFlow(t *testing.T) {
	r, _, store := newTestRegistry(t)

	v, err := r.Create("alice", match.Quick, 3)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v.MatchID)
	require.NoError(t, err)

	got, err := r.Resign("alice", v.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.State)
	assert.Equal(t, "bob", got.WinnerID)

	s, err := store.LoadStats(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, s.GamesWon)
}

// Two callers race their submissions; the round must resolve exactly
// once with winner bob, regardless of arrival order.
func TestSimultaneousSubmissions(t *testing.T) {
	for i := 0; i < 20; i++ {
		r, _, _ := newTestRegistry(t)
		v, err := r.Create("alice", match.Quick, 1)
		require.NoError(t, err)
		_, err = r.JoinByID("bob", v.MatchID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.Submit("alice", v.MatchID, game.Rock)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := r.Submit("bob", v.MatchID, game.Paper)
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := r.Get("alice", v.MatchID)
		require.NoError(t, err)
		assert.Equal(t, "completed", got.State)
		assert.Equal(t, "bob", got.WinnerID)
		require.Len(t, got.RoundHistory, 1)
	}
}

func TestDistinctMatchesProgressIndependently(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v1, err := r.Create("alice", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("bob", v1.MatchID)
	require.NoError(t, err)

	v2, err := r.Create("carol", match.Quick, 1)
	require.NoError(t, err)
	_, err = r.JoinByID("dave", v2.MatchID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, sub := range []struct {
		player, matchID string
		mv              game.Move
	}{
		{"alice", v1.MatchID, game.Rock},
		{"bob", v1.MatchID, game.Scissors},
		{"carol", v2.MatchID, game.Paper},
		{"dave", v2.MatchID, game.Scissors},
	} {
		wg.Add(1)
		go func(player, matchID string, mv game.Move) {
			defer wg.Done()
			_, err := r.Submit(player, matchID, mv)
			assert.NoError(t, err)
		}(sub.player, sub.matchID, sub.mv)
	}
	wg.Wait()

	g1, err := r.Get("alice", v1.MatchID)
	require.NoError(t, err)
	g2, err := r.Get("carol", v2.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "alice", g1.WinnerID)
	assert.Equal(t, "dave", g2.WinnerID)
}
