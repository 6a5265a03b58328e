// Package service is the command surface: it resolves player
// identities against the repository, enforces configured bounds, and
// delegates match transitions to the registry. Adapters (HTTP, chat)
// call only this package.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"okinoko-rps/internal/game"
	"okinoko-rps/internal/match"
	"okinoko-rps/internal/registry"
	"okinoko-rps/internal/repo"
	"okinoko-rps/internal/stats"
)

// DefaultBestOf applies when a create request leaves bestOf unset.
const DefaultBestOf = 1

const maxDisplayName = 64

// Config carries the bounds the service enforces on top of the match
// package's own validation.
type Config struct {
	MaxBestOf int
}

// Service wires the repository and the registry behind one API.
type Service struct {
	cfg   Config
	store repo.Store
	reg   *registry.Registry
	log   *zap.Logger
}

// New builds the command surface.
func New(cfg Config, store repo.Store, reg *registry.Registry, log *zap.Logger) *Service {
	return &Service{cfg: cfg, store: store, reg: reg, log: log}
}

// RegisterPlayer resolves an external identity to a player, creating
// one on first contact. Re-registering refreshes lastActiveAt.
func (s *Service) RegisterPlayer(ctx context.Context, extID int64, displayName string) (*repo.Player, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, match.E(match.KindInvalidArgument, "display name must not be empty")
	}
	if len(displayName) > maxDisplayName {
		return nil, match.E(match.KindInvalidArgument, "display name too long")
	}

	p, err := s.store.LoadPlayerByExternalID(ctx, extID)
	if err == nil {
		s.touch(ctx, p.ID)
		return p, nil
	}
	if match.KindOf(err) != match.KindNotFound {
		return nil, err
	}
	p, err = s.store.CreatePlayer(ctx, extID, displayName)
	if err != nil {
		return nil, err
	}
	s.log.Info("player registered",
		zap.String("playerId", p.ID),
		zap.Int64("externalId", extID),
	)
	return p, nil
}

// PlayerByExternalID resolves an already registered external identity.
func (s *Service) PlayerByExternalID(ctx context.Context, extID int64) (*repo.Player, error) {
	return s.store.LoadPlayerByExternalID(ctx, extID)
}

// CreateQuickMatch opens a queue-visible match. bestOf zero means the
// default.
func (s *Service) CreateQuickMatch(ctx context.Context, playerID string, bestOf int) (*match.View, error) {
	return s.create(ctx, playerID, match.Quick, bestOf)
}

// CreatePrivateMatch opens a match joinable only by id.
func (s *Service) CreatePrivateMatch(ctx context.Context, playerID string, bestOf int) (*match.View, error) {
	return s.create(ctx, playerID, match.Private, bestOf)
}

func (s *Service) create(ctx context.Context, playerID string, mode match.Mode, bestOf int) (*match.View, error) {
	if err := s.requirePlayer(ctx, playerID); err != nil {
		return nil, err
	}
	if bestOf == 0 {
		bestOf = DefaultBestOf
	}
	if bestOf > s.cfg.MaxBestOf {
		return nil, match.E(match.KindInvalidArgument, "bestOf exceeds configured maximum")
	}
	s.touch(ctx, playerID)
	return s.reg.Create(playerID, mode, bestOf)
}

// JoinOpenQuickMatch pairs the player with the oldest waiting quick
// match.
func (s *Service) JoinOpenQuickMatch(ctx context.Context, playerID string) (*match.View, error) {
	if err := s.requirePlayer(ctx, playerID); err != nil {
		return nil, err
	}
	s.touch(ctx, playerID)
	return s.reg.JoinOpenQuick(playerID)
}

// JoinMatchByID seats the player in a specific match.
func (s *Service) JoinMatchByID(ctx context.Context, playerID, matchID string) (*match.View, error) {
	if err := s.requirePlayer(ctx, playerID); err != nil {
		return nil, err
	}
	s.touch(ctx, playerID)
	return s.reg.JoinByID(playerID, matchID)
}

// SubmitMove records a move given as text ("rock", "paper",
// "scissors").
func (s *Service) SubmitMove(ctx context.Context, playerID, matchID, moveText string) (*match.View, error) {
	mv, ok := game.ParseMove(moveText)
	if !ok {
		return nil, match.E(match.KindInvalidArgument, "unknown move "+moveText)
	}
	s.touch(ctx, playerID)
	return s.reg.Submit(playerID, matchID, mv)
}

// CurrentMatchID reports the player's live match, if any. Chat
// adapters use it to route bare move commands.
func (s *Service) CurrentMatchID(playerID string) (string, bool) {
	return s.reg.MatchIDForPlayer(playerID)
}

// GetMatchView renders a live or recently finished match for one
// participant.
func (s *Service) GetMatchView(ctx context.Context, viewerID, matchID string) (*match.View, error) {
	return s.reg.Get(viewerID, matchID)
}

// CancelMatch aborts a match still waiting for an opponent.
func (s *Service) CancelMatch(ctx context.Context, playerID, matchID string) (*match.View, error) {
	s.touch(ctx, playerID)
	return s.reg.CancelByUser(playerID, matchID)
}

// ResignMatch concedes an in-progress match.
func (s *Service) ResignMatch(ctx context.Context, playerID, matchID string) (*match.View, error) {
	s.touch(ctx, playerID)
	return s.reg.Resign(playerID, matchID)
}

// GetPlayerStats returns the accumulated record for a player. Players
// who have never finished a match get the zero record at seed rating.
func (s *Service) GetPlayerStats(ctx context.Context, playerID string) (*stats.View, error) {
	if err := s.requirePlayer(ctx, playerID); err != nil {
		return nil, err
	}
	row, err := s.store.LoadStats(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return stats.BuildView(row), nil
}

// ListRecentMatches returns the player's finished matches, newest
// first.
func (s *Service) ListRecentMatches(ctx context.Context, playerID string, limit int) ([]match.Summary, error) {
	if err := s.requirePlayer(ctx, playerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.store.ListRecentMatchesForPlayer(ctx, playerID, limit)
}

// requirePlayer verifies the id resolves to a registered player.
func (s *Service) requirePlayer(ctx context.Context, playerID string) error {
	if playerID == "" {
		return match.E(match.KindInvalidArgument, "player id must not be empty")
	}
	_, err := s.store.LoadPlayer(ctx, playerID)
	return err
}

// touch bumps lastActiveAt, best effort.
func (s *Service) touch(ctx context.Context, playerID string) {
	if err := s.store.TouchPlayer(ctx, playerID, time.Now().UTC()); err != nil {
		s.log.Debug("touch player failed",
			zap.String("playerId", playerID), zap.Error(err))
	}
}
