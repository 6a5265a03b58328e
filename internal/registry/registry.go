// Package registry owns every live match: lookup, matchmaking queue,
// per-match serialisation, deadline delivery, and the terminal flush
// into the repository.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"okinoko-rps/internal/game"
	"okinoko-rps/internal/match"
	"okinoko-rps/internal/repo"
	"okinoko-rps/internal/stats"
)

// Config carries the tunables the registry needs.
type Config struct {
	MoveTimeout time.Duration
	CacheTTL    time.Duration
	Rating      stats.RatingParams
}

const flushAttempts = 3

// Registry is the process-wide index of live matches.
type Registry struct {
	cfg   Config
	clk   clock.Clock
	log   *zap.Logger
	store repo.Store
	sched *Scheduler

	mu       sync.Mutex
	entries  map[string]*entry
	byPlayer map[string]string // playerID -> non-terminal matchID
	queue    []string          // quick matches awaiting an opponent, FIFO
	cache    map[string]cached // terminal matches kept for reads

	// flushWG lets tests and shutdown wait for async retry flushes.
	flushWG sync.WaitGroup
}

// entry pairs a match with its exclusion lock. All transitions on the
// match happen while holding mu.
type entry struct {
	mu sync.Mutex
	m  *match.Match
}

type cached struct {
	m       *match.Match
	expires time.Time
}

// New wires a registry. The scheduler delivers expiries back into it.
func New(cfg Config, clk clock.Clock, store repo.Store, log *zap.Logger) *Registry {
	r := &Registry{
		cfg:      cfg,
		clk:      clk,
		log:      log,
		store:    store,
		entries:  make(map[string]*entry),
		byPlayer: make(map[string]string),
		cache:    make(map[string]cached),
	}
	r.sched = NewScheduler(clk, r.handleDeadline)
	return r
}

// Create opens a match with playerID seated as player one.
func (r *Registry) Create(playerID string, mode match.Mode, bestOf int) (*match.View, error) {
	now := r.clk.Now()
	m, err := match.New(uuid.NewString(), playerID, mode, bestOf, r.cfg.MoveTimeout, now)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if busy, ok := r.byPlayer[playerID]; ok {
		r.mu.Unlock()
		return nil, match.E(match.KindPlayerBusy, "already in match "+busy)
	}
	r.entries[m.ID] = &entry{m: m}
	r.byPlayer[playerID] = m.ID
	if mode == match.Quick {
		r.queue = append(r.queue, m.ID)
	}
	r.mu.Unlock()

	emitMatchCreated(r.log, m)
	return match.BuildView(m, playerID)
}

// JoinByID seats playerID as the opponent in a specific match.
func (r *Registry) JoinByID(playerID, matchID string) (*match.View, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.joinLocked(e, playerID)
}

// JoinOpenQuick pairs playerID with the oldest waiting quick match.
func (r *Registry) JoinOpenQuick(playerID string) (*match.View, error) {
	for {
		r.mu.Lock()
		var candidate *entry
		sawOwn := false
		for _, id := range r.queue {
			e, ok := r.entries[id]
			if !ok {
				continue
			}
			if e.m.Player1 == playerID {
				// Never pair a player with themselves.
				sawOwn = true
				continue
			}
			candidate = e
			break
		}
		r.mu.Unlock()
		if candidate == nil {
			if sawOwn {
				return nil, match.E(match.KindSelfJoin, "cannot join own match")
			}
			return nil, match.E(match.KindNoMatchAvailable, "no open match to join")
		}

		candidate.mu.Lock()
		v, err := r.joinLocked(candidate, playerID)
		candidate.mu.Unlock()
		if err == nil {
			return v, nil
		}
		// The candidate may have been joined or cancelled between the
		// queue scan and taking its lock; only that case retries.
		if match.KindOf(err) == match.KindIllegalState {
			continue
		}
		return nil, err
	}
}

// joinLocked performs the join transition. Caller holds e.mu.
func (r *Registry) joinLocked(e *entry, playerID string) (*match.View, error) {
	m := e.m
	if m.State != match.AwaitingOpponent {
		return nil, match.E(match.KindIllegalState, "match is "+m.State.String())
	}
	if playerID == m.Player1 {
		return nil, match.E(match.KindSelfJoin, "cannot join own match")
	}

	r.mu.Lock()
	if busy, ok := r.byPlayer[playerID]; ok {
		r.mu.Unlock()
		return nil, match.E(match.KindPlayerBusy, "already in match "+busy)
	}
	r.byPlayer[playerID] = m.ID
	r.removeFromQueue(m.ID)
	r.mu.Unlock()

	if err := m.Join(playerID, r.clk.Now()); err != nil {
		r.mu.Lock()
		delete(r.byPlayer, playerID)
		r.mu.Unlock()
		return nil, err
	}
	r.sched.Arm(m.ID, m.DeadlineAt, m.Epoch)
	emitMatchJoined(r.log, m)
	return match.BuildView(m, playerID)
}

// Submit records a move and resolves the round when both are in.
func (r *Registry) Submit(playerID, matchID string, mv game.Move) (*match.View, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	rounds := len(e.m.Rounds)
	if err := e.m.SubmitMove(playerID, mv, r.clk.Now()); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if len(e.m.Rounds) > rounds {
		emitRoundResolved(r.log, e.m)
	}
	v, verr := match.BuildView(e.m, playerID)
	r.afterTransitionLocked(e)
	terminal := e.m.State.Terminal()
	m := e.m
	e.mu.Unlock()

	if terminal {
		r.flush(m)
	}
	return v, verr
}

// CancelByUser aborts a match that is still waiting for an opponent.
func (r *Registry) CancelByUser(playerID, matchID string) (*match.View, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	m := e.m
	if !m.IsParticipant(playerID) {
		e.mu.Unlock()
		return nil, match.E(match.KindNotParticipant, "not in this match")
	}
	if m.State != match.AwaitingOpponent {
		e.mu.Unlock()
		return nil, match.E(match.KindIllegalState, "only cancellable while awaiting an opponent")
	}
	if err := m.Cancel(r.clk.Now()); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	v, verr := match.BuildView(m, playerID)
	r.afterTransitionLocked(e)
	e.mu.Unlock()

	emitMatchEnded(r.log, m)
	return v, verr
}

// Resign concedes an in-progress match to the opponent.
func (r *Registry) Resign(playerID, matchID string) (*match.View, error) {
	e, err := r.lookup(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if err := e.m.Resign(playerID, r.clk.Now()); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	v, verr := match.BuildView(e.m, playerID)
	r.afterTransitionLocked(e)
	m := e.m
	e.mu.Unlock()

	r.flush(m)
	return v, verr
}

// Get renders the viewer-restricted state of a live or recently
// finished match.
func (r *Registry) Get(viewerID, matchID string) (*match.View, error) {
	r.mu.Lock()
	if e, ok := r.entries[matchID]; ok {
		r.mu.Unlock()
		e.mu.Lock()
		defer e.mu.Unlock()
		return match.BuildView(e.m, viewerID)
	}
	c, ok := r.cache[matchID]
	r.mu.Unlock()
	if !ok || r.clk.Now().After(c.expires) {
		return nil, match.E(match.KindNotFound, "unknown match")
	}
	return match.BuildView(c.m, viewerID)
}

// MatchIDForPlayer returns the player's current non-terminal match, if
// any. Chat adapters use it to route bare move commands.
func (r *Registry) MatchIDForPlayer(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	return id, ok
}

// handleDeadline is the scheduler's delivery path.
func (r *Registry) handleDeadline(matchID string, epoch uint64) {
	e, err := r.lookup(matchID)
	if err != nil {
		return // match already evicted; stale timer
	}
	e.mu.Lock()
	m := e.m
	if !m.OnDeadline(epoch, r.clk.Now()) {
		e.mu.Unlock()
		return
	}
	emitDeadlineFired(r.log, m, epoch)
	r.afterTransitionLocked(e)
	terminal := m.State.Terminal()
	e.mu.Unlock()

	if terminal {
		r.flush(m)
	}
}

// afterTransitionLocked reconciles scheduler and indices with the
// match's post-transition state. Caller holds e.mu.
func (r *Registry) afterTransitionLocked(e *entry) {
	m := e.m
	switch {
	case m.State == match.AwaitingMoves:
		r.sched.Arm(m.ID, m.DeadlineAt, m.Epoch)
	case m.State.Terminal():
		r.sched.Cancel(m.ID)
		r.mu.Lock()
		delete(r.entries, m.ID)
		if r.byPlayer[m.Player1] == m.ID {
			delete(r.byPlayer, m.Player1)
		}
		if m.Player2 != "" && r.byPlayer[m.Player2] == m.ID {
			delete(r.byPlayer, m.Player2)
		}
		r.removeFromQueue(m.ID)
		if m.State != match.Cancelled {
			r.cache[m.ID] = cached{m: m, expires: r.clk.Now().Add(r.cfg.CacheTTL)}
		}
		r.sweepCacheLocked()
		r.mu.Unlock()
		if m.State != match.Cancelled {
			emitMatchEnded(r.log, m)
		}
	}
}

// flush accumulates stats and persists the finished match. Called
// after the per-match lock is released. Cancelled matches never played
// and are not persisted.
func (r *Registry) flush(m *match.Match) {
	if m.State == match.Cancelled {
		return
	}
	if err := r.flushOnce(m); err != nil {
		if match.KindOf(err) == match.KindTransientBackend {
			r.flushWG.Add(1)
			go r.retryFlush(m)
			return
		}
		r.log.Error("completed match flush failed",
			zap.String("matchId", m.ID), zap.Error(err))
	}
}

// flushOnce runs one load-accumulate-save cycle with bounded conflict
// retries. Accumulation is idempotent by match id, so replays after a
// conflict reload are safe.
func (r *Registry) flushOnce(m *match.Match) error {
	ctx := context.Background()
	var err error
	for attempt := 0; attempt < flushAttempts; attempt++ {
		var s1, s2 *stats.PlayerStats
		s1, err = r.store.LoadStats(ctx, m.Player1)
		if err != nil {
			return err
		}
		s2, err = r.store.LoadStats(ctx, m.Player2)
		if err != nil {
			return err
		}
		stats.Accumulate(s1, s2, m, r.cfg.Rating)
		err = r.store.SaveCompletedMatch(ctx, match.Summarize(m), s1, s2)
		if err == nil {
			emitStatsFlushed(r.log, m)
			return nil
		}
		if match.KindOf(err) != match.KindConflict {
			return err
		}
	}
	return err
}

// retryFlush keeps a completed match queued until the backend accepts
// it. The in-memory completion is never reverted.
func (r *Registry) retryFlush(m *match.Match) {
	defer r.flushWG.Done()
	backoff := time.Second
	for {
		err := r.flushOnce(m)
		if err == nil {
			return
		}
		if match.KindOf(err) != match.KindTransientBackend {
			r.log.Error("completed match flush failed",
				zap.String("matchId", m.ID), zap.Error(err))
			return
		}
		r.log.Warn("backend unavailable, retrying flush",
			zap.String("matchId", m.ID), zap.Duration("backoff", backoff))
		timer := r.clk.Timer(backoff)
		<-timer.C
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// WaitFlushes blocks until queued retry flushes settle. Test hook.
func (r *Registry) WaitFlushes() { r.flushWG.Wait() }

func (r *Registry) lookup(matchID string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[matchID]
	if !ok {
		return nil, match.E(match.KindNotFound, "unknown match")
	}
	return e, nil
}

// removeFromQueue drops a match id from the FIFO. Caller holds r.mu.
func (r *Registry) removeFromQueue(matchID string) {
	for i, id := range r.queue {
		if id == matchID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// sweepCacheLocked drops expired summaries. Caller holds r.mu.
func (r *Registry) sweepCacheLocked() {
	now := r.clk.Now()
	for id, c := range r.cache {
		if now.After(c.expires) {
			delete(r.cache, id)
		}
	}
}
