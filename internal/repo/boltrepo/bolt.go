// Package boltrepo persists the repository on an embedded bbolt file.
// One process owns the file; the per-row version check still guards
// against concurrent flush workers inside that process.
package boltrepo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/repo"
	"okinoko-rps/internal/stats"
)

var (
	bucketPlayers  = []byte("players")
	bucketByExt    = []byte("players_by_ext")
	bucketStats    = []byte("stats")
	bucketMatches  = []byte("matches")
	bucketHistory  = []byte("history")
	historyPerUser = 100
)

// Store implements repo.Store on a bbolt database.
type Store struct {
	db         *bolt.DB
	ratingSeed int
}

var _ repo.Store = (*Store)(nil)

// Open creates or opens the database file and ensures all buckets.
func Open(path string, ratingSeed int) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketPlayers, bucketByExt, bucketStats, bucketMatches, bucketHistory} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "init buckets")
	}
	return &Store{db: db, ratingSeed: ratingSeed}, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

func extKey(extID int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(extID))
	return k[:]
}

func (s *Store) LoadPlayerByExternalID(_ context.Context, extID int64) (*repo.Player, error) {
	var p repo.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketByExt).Get(extKey(extID))
		if id == nil {
			return match.E(match.KindNotFound, "no player with external id "+strconv.FormatInt(extID, 10))
		}
		raw := tx.Bucket(bucketPlayers).Get(id)
		if raw == nil {
			return match.E(match.KindNotFound, "player record missing")
		}
		return json.Unmarshal(raw, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePlayer(_ context.Context, extID int64, displayName string) (*repo.Player, error) {
	now := time.Now().UTC()
	p := &repo.Player{
		ID:           uuid.NewString(),
		ExternalID:   extID,
		DisplayName:  displayName,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		byExt := tx.Bucket(bucketByExt)
		if byExt.Get(extKey(extID)) != nil {
			return match.E(match.KindConflict, "external id already registered")
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketPlayers).Put([]byte(p.ID), raw); err != nil {
			return err
		}
		return byExt.Put(extKey(extID), []byte(p.ID))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) LoadPlayer(_ context.Context, playerID string) (*repo.Player, error) {
	var p repo.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPlayers).Get([]byte(playerID))
		if raw == nil {
			return match.E(match.KindNotFound, "unknown player")
		}
		return json.Unmarshal(raw, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) TouchPlayer(_ context.Context, playerID string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		raw := b.Get([]byte(playerID))
		if raw == nil {
			return match.E(match.KindNotFound, "unknown player")
		}
		var p repo.Player
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if !at.After(p.LastActiveAt) {
			return nil
		}
		p.LastActiveAt = at
		out, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		return b.Put([]byte(playerID), out)
	})
}

func (s *Store) LoadStats(_ context.Context, playerID string) (*stats.PlayerStats, error) {
	var st *stats.PlayerStats
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketStats).Get([]byte(playerID))
		if raw == nil {
			st = stats.NewPlayerStats(playerID, s.ratingSeed)
			return nil
		}
		st = &stats.PlayerStats{}
		return json.Unmarshal(raw, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) SaveCompletedMatch(_ context.Context, sum match.Summary, s1, s2 *stats.PlayerStats) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketStats)
		for _, row := range []*stats.PlayerStats{s1, s2} {
			raw := sb.Get([]byte(row.PlayerID))
			if raw == nil {
				if row.Version != 0 {
					return match.E(match.KindConflict, "stats row vanished for "+row.PlayerID)
				}
				continue
			}
			var stored stats.PlayerStats
			if err := json.Unmarshal(raw, &stored); err != nil {
				return err
			}
			if stored.Version != row.Version {
				return match.E(match.KindConflict, "stats row changed for "+row.PlayerID)
			}
		}

		mb := tx.Bucket(bucketMatches)
		if mb.Get([]byte(sum.MatchID)) == nil {
			raw, err := json.Marshal(sum)
			if err != nil {
				return err
			}
			if err := mb.Put([]byte(sum.MatchID), raw); err != nil {
				return err
			}
			hb := tx.Bucket(bucketHistory)
			for _, pid := range []string{sum.Player1, sum.Player2} {
				if err := appendHistory(hb, pid, sum.MatchID); err != nil {
					return err
				}
			}
		}

		for _, row := range []*stats.PlayerStats{s1, s2} {
			row.Version++
			raw, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := sb.Put([]byte(row.PlayerID), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if match.KindOf(err) != 0 {
			return err
		}
		return errors.Wrap(err, "save completed match")
	}
	return nil
}

func appendHistory(b *bolt.Bucket, playerID, matchID string) error {
	var ids []string
	if raw := b.Get([]byte(playerID)); raw != nil {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return err
		}
	}
	ids = append(ids, matchID)
	if len(ids) > historyPerUser {
		ids = ids[len(ids)-historyPerUser:]
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return b.Put([]byte(playerID), raw)
}

func (s *Store) ListRecentMatchesForPlayer(_ context.Context, playerID string, limit int) ([]match.Summary, error) {
	var out []match.Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHistory).Get([]byte(playerID))
		if raw == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return err
		}
		mb := tx.Bucket(bucketMatches)
		for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
			rec := mb.Get([]byte(ids[i]))
			if rec == nil {
				continue
			}
			var sum match.Summary
			if err := json.Unmarshal(rec, &sum); err != nil {
				return err
			}
			out = append(out, sum)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list recent matches")
	}
	return out, nil
}
