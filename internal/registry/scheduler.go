package registry

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// FireFunc receives deadline expiries. The epoch identifies which
// arming fired; consumers discard epochs that no longer match.
type FireFunc func(matchID string, epoch uint64)

// Scheduler keeps one pending deadline timer per match. Arming a match
// supersedes its previous timer; durations come from a monotonic
// clock, so wall-clock jumps cannot fire rounds early.
type Scheduler struct {
	clk  clock.Clock
	fire FireFunc

	mu     sync.Mutex
	timers map[string]*armedTimer
}

type armedTimer struct {
	timer *clock.Timer
	epoch uint64
}

// NewScheduler builds a scheduler delivering expiries to fire. Callers
// must not block in fire beyond one match transition.
func NewScheduler(clk clock.Clock, fire FireFunc) *Scheduler {
	return &Scheduler{
		clk:    clk,
		fire:   fire,
		timers: make(map[string]*armedTimer),
	}
}

// Arm schedules a deadline for matchID, replacing any earlier arming.
func (s *Scheduler) Arm(matchID string, at time.Time, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[matchID]; ok {
		prev.timer.Stop()
	}
	d := at.Sub(s.clk.Now())
	if d < 0 {
		d = 0
	}
	a := &armedTimer{epoch: epoch}
	a.timer = s.clk.AfterFunc(d, func() {
		s.expire(matchID, epoch)
	})
	s.timers[matchID] = a
}

// Cancel drops any pending timer for matchID. A timer that already
// fired delivers an expiry whose epoch the match will reject.
func (s *Scheduler) Cancel(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.timers[matchID]; ok {
		a.timer.Stop()
		delete(s.timers, matchID)
	}
}

func (s *Scheduler) expire(matchID string, epoch uint64) {
	s.mu.Lock()
	if a, ok := s.timers[matchID]; ok && a.epoch == epoch {
		delete(s.timers, matchID)
	}
	s.mu.Unlock()
	s.fire(matchID, epoch)
}
