package repo

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/stats"
)

// Memory is the in-process Store. It backs tests and single-node
// deployments that accept losing history on restart.
type Memory struct {
	mu         sync.RWMutex
	players    map[string]*Player
	byExternal map[int64]string
	stats      map[string]*stats.PlayerStats
	matches    map[string]match.Summary
	history    map[string][]string // playerID -> matchIDs, oldest first

	ratingSeed int
}

// NewMemory creates an empty in-memory store. ratingSeed initialises
// lazily created stats rows.
func NewMemory(ratingSeed int) *Memory {
	return &Memory{
		players:    make(map[string]*Player),
		byExternal: make(map[int64]string),
		stats:      make(map[string]*stats.PlayerStats),
		matches:    make(map[string]match.Summary),
		history:    make(map[string][]string),
		ratingSeed: ratingSeed,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) LoadPlayerByExternalID(_ context.Context, extID int64) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExternal[extID]
	if !ok {
		return nil, match.E(match.KindNotFound, "no player with external id "+strconv.FormatInt(extID, 10))
	}
	p := *m.players[id]
	return &p, nil
}

func (m *Memory) CreatePlayer(_ context.Context, extID int64, displayName string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byExternal[extID]; ok {
		return nil, match.E(match.KindConflict, "external id already registered")
	}
	now := time.Now().UTC()
	p := &Player{
		ID:           uuid.NewString(),
		ExternalID:   extID,
		DisplayName:  displayName,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	m.players[p.ID] = p
	m.byExternal[extID] = p.ID
	cp := *p
	return &cp, nil
}

func (m *Memory) LoadPlayer(_ context.Context, playerID string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, match.E(match.KindNotFound, "unknown player")
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) TouchPlayer(_ context.Context, playerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return match.E(match.KindNotFound, "unknown player")
	}
	if at.After(p.LastActiveAt) {
		p.LastActiveAt = at
	}
	return nil
}

func (m *Memory) LoadStats(_ context.Context, playerID string) (*stats.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stats[playerID]; ok {
		cp := *s
		return &cp, nil
	}
	return stats.NewPlayerStats(playerID, m.ratingSeed), nil
}

func (m *Memory) SaveCompletedMatch(_ context.Context, sum match.Summary, s1, s2 *stats.PlayerStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range []*stats.PlayerStats{s1, s2} {
		stored, ok := m.stats[s.PlayerID]
		if ok && stored.Version != s.Version {
			return match.E(match.KindConflict, "stats row changed for "+s.PlayerID)
		}
		if !ok && s.Version != 0 {
			return match.E(match.KindConflict, "stats row vanished for "+s.PlayerID)
		}
	}

	if _, ok := m.matches[sum.MatchID]; !ok {
		m.matches[sum.MatchID] = sum
		m.history[sum.Player1] = append(m.history[sum.Player1], sum.MatchID)
		m.history[sum.Player2] = append(m.history[sum.Player2], sum.MatchID)
	}
	for _, s := range []*stats.PlayerStats{s1, s2} {
		cp := *s
		cp.Version++
		m.stats[s.PlayerID] = &cp
		s.Version = cp.Version
	}
	return nil
}

func (m *Memory) ListRecentMatchesForPlayer(_ context.Context, playerID string, limit int) ([]match.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.history[playerID]
	out := make([]match.Summary, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.matches[ids[i]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out, nil
}
