package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/engine"
	"github.com/clanarena/draftauction/internal/projection"
	"github.com/clanarena/draftauction/internal/timer"
)

// EventPublisher relays room events to other gateway instances.
type EventPublisher interface {
	Publish(auctionID uuid.UUID, event *RoomEvent) error
}

// commandTimeout bounds the engine call made for a single inbound command.
const commandTimeout = 10 * time.Second

// Service ties the connection manager, the auction engine, the room
// projector and the countdown scheduler together. One instance serves
// every auction room on this process.
type Service struct {
	engine    *engine.Engine
	projector *projection.Projector
	cm        *ConnectionManager
	scheduler *timer.Scheduler
	publisher EventPublisher
	clock     clockwork.Clock
}

func NewService(eng *engine.Engine, proj *projection.Projector, cm *ConnectionManager, publisher EventPublisher, clock clockwork.Clock) *Service {
	s := &Service{
		engine:    eng,
		projector: proj,
		cm:        cm,
		publisher: publisher,
		clock:     clock,
	}
	s.scheduler = timer.NewScheduler(clock, s.handleTick, s.handleExpire)
	cm.SetHandler(s)
	cm.SetPresenceFunc(s.handlePresence)
	return s
}

// Scheduler exposes the countdown registry for shutdown.
func (s *Service) Scheduler() *timer.Scheduler {
	return s.scheduler
}

// RehydrateTimer restarts the countdown for an auction whose round
// deadline survived a process restart.
func (s *Service) RehydrateTimer(auctionID uuid.UUID, deadline time.Time) {
	s.scheduler.Start(auctionID, deadline)
}

// broadcastEvent fans an event out locally and relays it to peers.
func (s *Service) broadcastEvent(auctionID uuid.UUID, ev *RoomEvent) {
	s.cm.Broadcast(auctionID, ev)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(auctionID, ev); err != nil {
		log.Warn().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("event_type", string(ev.Type)).
			Msg("failed to relay room event")
	}
}

// broadcastState projects the room and fans the snapshot out.
func (s *Service) broadcastState(ctx context.Context, auctionID uuid.UUID) {
	state, err := s.projector.Snapshot(ctx, auctionID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to project room state")
		return
	}
	s.broadcastEvent(auctionID, newEvent(auctionID, EventTypeRoomState, state, s.clock.Now()))
}

// sendState delivers the current room snapshot to one connection only.
func (s *Service) sendState(ctx context.Context, conn *Connection) error {
	state, err := s.projector.Snapshot(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	s.cm.SendTo(conn, newEvent(conn.AuctionID, EventTypeRoomState, state, s.clock.Now()))
	return nil
}

func (s *Service) handlePresence(auctionID, userID uuid.UUID, joined bool, connections int) {
	eventType := EventTypeUserLeft
	if joined {
		eventType = EventTypeUserJoined
	}
	// Only the first connection in and the last connection out are
	// visible to the room; extra tabs stay silent.
	if joined && connections > 1 {
		return
	}
	if !joined && connections > 0 {
		return
	}
	payload := PresencePayload{UserID: userID, Connections: connections}
	s.broadcastEvent(auctionID, newEvent(auctionID, eventType, payload, s.clock.Now()))
}

func (s *Service) handleTick(auctionID uuid.UUID, remainingSec int) {
	payload := TimerUpdatePayload{
		RemainingSec: remainingSec,
		TickedAt:     s.clock.Now(),
	}
	s.broadcastEvent(auctionID, newEvent(auctionID, EventTypeTimerUpdate, payload, s.clock.Now()))
}

func (s *Service) handleExpire(auctionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	outcome, err := s.engine.ResolveTimeout(ctx, auctionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("timeout resolution failed")
		return
	}
	if outcome.Noop {
		return
	}

	switch {
	case outcome.Sale != nil:
		payload := BidConfirmedPayload{
			PlayerID:  outcome.Sale.PlayerID,
			CaptainID: outcome.Sale.CaptainID,
			Amount:    outcome.Sale.Amount,
			Auto:      true,
			Reason:    outcome.Sale.Reason,
		}
		s.broadcastEvent(auctionID, newEvent(auctionID, EventTypeBidConfirmed, payload, s.clock.Now()))
	case outcome.PassedID != nil:
		payload := PlayerPassedPayload{PlayerID: *outcome.PassedID}
		s.broadcastEvent(auctionID, newEvent(auctionID, EventTypePlayerPassed, payload, s.clock.Now()))
	}
	s.broadcastState(ctx, auctionID)
}
