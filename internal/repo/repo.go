// Package repo defines the persistence contract for players, stats,
// and completed matches. In-flight match state never touches a Store;
// a match is durable only once SaveCompletedMatch returns nil.
package repo

import (
	"context"
	"time"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/stats"
)

// Player is the persistent identity of a participant.
type Player struct {
	ID           string    `json:"id"`
	ExternalID   int64     `json:"externalId"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Store is the repository contract. Implementations must be safe for
// concurrent use. Failures are reported with the typed kinds from the
// match package: KindNotFound, KindConflict, KindTransientBackend.
type Store interface {
	// LoadPlayerByExternalID resolves the stable external identifier.
	LoadPlayerByExternalID(ctx context.Context, extID int64) (*Player, error)

	// CreatePlayer registers a new identity. Conflict if the external
	// id is already taken.
	CreatePlayer(ctx context.Context, extID int64, displayName string) (*Player, error)

	// LoadPlayer resolves an internal player id.
	LoadPlayer(ctx context.Context, playerID string) (*Player, error)

	// TouchPlayer bumps lastActiveAt. Best effort; races are harmless.
	TouchPlayer(ctx context.Context, playerID string, at time.Time) error

	// LoadStats returns the player's stats row, zero-initialised (with
	// the seed rating) when none has been saved yet.
	LoadStats(ctx context.Context, playerID string) (*stats.PlayerStats, error)

	// SaveCompletedMatch persists a terminal match and both updated
	// stats rows atomically, guarded by each row's version. Conflict
	// means another writer got there first: reload, re-accumulate
	// (idempotent by match id), retry.
	SaveCompletedMatch(ctx context.Context, sum match.Summary, s1, s2 *stats.PlayerStats) error

	// ListRecentMatchesForPlayer returns the newest summaries first.
	ListRecentMatchesForPlayer(ctx context.Context, playerID string, limit int) ([]match.Summary, error)
}
