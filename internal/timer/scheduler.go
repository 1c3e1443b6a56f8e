// Package timer runs one independent countdown per auction, keyed by
// auction identity rather than any single connection. Pause/resume state is
// persisted on the auction record by the engine; the scheduler itself only
// knows how to run a countdown to a deadline.
package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickFunc receives the remaining whole seconds once per second.
type TickFunc func(auctionID uuid.UUID, remainingSec int)

// ExpireFunc fires exactly once when a countdown reaches zero.
type ExpireFunc func(auctionID uuid.UUID)

// Scheduler owns at most one active countdown per auction. Starting a new
// countdown always cancels any existing one for that auction first.
type Scheduler struct {
	clock    clockwork.Clock
	onTick   TickFunc
	onExpire ExpireFunc

	mu         sync.Mutex
	countdowns map[uuid.UUID]*countdown
}

type countdown struct {
	deadline time.Time
	stop     chan struct{}
	once     sync.Once
}

func (c *countdown) cancel() {
	c.once.Do(func() { close(c.stop) })
}

func NewScheduler(clock clockwork.Clock, onTick TickFunc, onExpire ExpireFunc) *Scheduler {
	return &Scheduler{
		clock:      clock,
		onTick:     onTick,
		onExpire:   onExpire,
		countdowns: make(map[uuid.UUID]*countdown),
	}
}

// Start begins a countdown toward deadline, replacing any countdown already
// running for the auction. A deadline at or before now expires immediately.
func (s *Scheduler) Start(auctionID uuid.UUID, deadline time.Time) {
	cd := &countdown{
		deadline: deadline,
		stop:     make(chan struct{}),
	}

	s.mu.Lock()
	if existing, ok := s.countdowns[auctionID]; ok {
		existing.cancel()
		log.Debug().Str("auction_id", auctionID.String()).Msg("replaced existing countdown")
	}
	s.countdowns[auctionID] = cd
	s.mu.Unlock()

	// The ticker is created before run is spawned so that callers observe a
	// registered ticker as soon as Start returns, and a replaced countdown's
	// ticker can never be the only one live.
	ticker := s.clock.NewTicker(time.Second)
	go s.run(auctionID, cd, ticker)

	log.Debug().
		Str("auction_id", auctionID.String()).
		Time("deadline", deadline).
		Msg("countdown started")
}

// Stop cancels the countdown for an auction, if any.
func (s *Scheduler) Stop(auctionID uuid.UUID) {
	s.mu.Lock()
	cd, ok := s.countdowns[auctionID]
	if ok {
		cd.cancel()
		delete(s.countdowns, auctionID)
	}
	s.mu.Unlock()

	if ok {
		log.Debug().Str("auction_id", auctionID.String()).Msg("countdown stopped")
	}
}

// StopAll cancels every countdown; used during shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cd := range s.countdowns {
		cd.cancel()
		delete(s.countdowns, id)
	}
}

// Active reports whether a countdown is running for the auction.
func (s *Scheduler) Active(auctionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.countdowns[auctionID]
	return ok
}

func (s *Scheduler) run(auctionID uuid.UUID, cd *countdown, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-cd.stop:
			return
		case <-ticker.Chan():
			// A tick and a cancellation can be ready at once; a cancelled
			// countdown must never reach the callbacks.
			select {
			case <-cd.stop:
				return
			default:
			}
			remaining := int(cd.deadline.Sub(s.clock.Now()).Seconds())
			if remaining <= 0 {
				s.remove(auctionID, cd)
				s.onExpire(auctionID)
				return
			}
			s.onTick(auctionID, remaining)
		}
	}
}

// remove drops the countdown only if it is still the registered one; a
// replacement may already have taken its slot.
func (s *Scheduler) remove(auctionID uuid.UUID, cd *countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.countdowns[auctionID]; ok && current == cd {
		delete(s.countdowns, auctionID)
	}
}
