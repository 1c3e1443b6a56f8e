package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/engine"
	"github.com/clanarena/draftauction/internal/models"
)

// Command is the envelope of every inbound websocket frame.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	CommandJoinAuction          = "join_auction"
	CommandStartAuction         = "start_auction"
	CommandSelectPlayer         = "select_player"
	CommandPlaceBid             = "place_bid"
	CommandConfirmBid           = "confirm_bid"
	CommandPassPlayer           = "pass_player"
	CommandNextPlayer           = "next_player"
	CommandUndoSoldPlayer       = "undo_sold_player"
	CommandEnterAssignmentPhase = "enter_assignment_phase"
	CommandManualAssignPlayer   = "manual_assign_player"
	CommandPauseAuction         = "pause_auction"
	CommandResumeAuction        = "resume_auction"
	CommandPauseTimer           = "pause_timer"
	CommandResumeTimer          = "resume_timer"
	CommandCancelAuction        = "cancel_auction"
	CommandCompleteAuction      = "complete_auction"
	CommandRequestState         = "request_state"
	CommandChatMessage          = "chat_message"
)

type commandFunc func(ctx context.Context, conn *Connection, data json.RawMessage) error

// HandleCommand dispatches one inbound frame. Engine rejections are
// delivered privately to the initiator; nothing reaches the room.
func (s *Service) HandleCommand(conn *Connection, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.sendError(conn, "", "validation", "malformed command frame")
		return
	}

	handler, adminOnly := s.route(cmd.Type)
	if handler == nil {
		s.sendError(conn, cmd.Type, "validation", "unknown command type")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if adminOnly {
		ok, err := s.engine.IsCreator(ctx, conn.AuctionID, conn.UserID)
		if err != nil {
			s.sendError(conn, cmd.Type, errorCode(err), err.Error())
			return
		}
		if !ok {
			s.sendError(conn, cmd.Type, "forbidden", "only the auction creator may do this")
			return
		}
	}

	if err := handler(ctx, conn, cmd.Data); err != nil {
		log.Debug().
			Err(err).
			Str("command", cmd.Type).
			Str("auction_id", conn.AuctionID.String()).
			Str("user_id", conn.UserID.String()).
			Msg("command rejected")
		s.sendError(conn, cmd.Type, errorCode(err), err.Error())
	}
}

// route maps a command type to its handler and admin requirement.
func (s *Service) route(commandType string) (commandFunc, bool) {
	switch commandType {
	case CommandJoinAuction:
		return s.handleJoinAuction, false
	case CommandStartAuction:
		return s.handleStartAuction, true
	case CommandSelectPlayer:
		return s.handleSelectPlayer, true
	case CommandPlaceBid:
		return s.handlePlaceBid, false
	case CommandConfirmBid:
		return s.handleConfirmBid, true
	case CommandPassPlayer:
		return s.handlePassPlayer, true
	case CommandNextPlayer:
		return s.handleNextPlayer, true
	case CommandUndoSoldPlayer:
		return s.handleUndoSoldPlayer, true
	case CommandEnterAssignmentPhase:
		return s.handleEnterAssignmentPhase, true
	case CommandManualAssignPlayer:
		return s.handleManualAssignPlayer, true
	case CommandPauseAuction:
		return s.handlePauseAuction, true
	case CommandResumeAuction:
		return s.handleResumeAuction, true
	case CommandPauseTimer:
		return s.handlePauseTimer, true
	case CommandResumeTimer:
		return s.handleResumeTimer, true
	case CommandCancelAuction:
		return s.handleCancelAuction, true
	case CommandCompleteAuction:
		return s.handleCompleteAuction, true
	case CommandRequestState:
		return s.handleRequestState, false
	case CommandChatMessage:
		return s.handleChatMessage, false
	default:
		return nil, false
	}
}

type joinAuctionData struct {
	DisplayName string                 `json:"display_name"`
	Role        models.ParticipantRole `json:"role"`
	AccessCode  *string                `json:"access_code,omitempty"`
}

func (s *Service) handleJoinAuction(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var req joinAuctionData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	participant, err := s.engine.JoinAuction(ctx, engine.JoinRequest{
		AuctionID:   conn.AuctionID,
		UserID:      conn.UserID,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		AccessCode:  req.AccessCode,
	})
	if err != nil {
		return err
	}
	payload := PresencePayload{UserID: participant.UserID, DisplayName: participant.DisplayName, Connections: 1}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeParticipantJoined, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleStartAuction(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	if _, err := s.engine.StartAuction(ctx, conn.AuctionID); err != nil {
		return err
	}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAuctionStarted, nil, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

type selectPlayerData struct {
	PlayerID uuid.UUID `json:"player_id"`
}

func (s *Service) handleSelectPlayer(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var req selectPlayerData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	round, err := s.engine.SelectPlayer(ctx, conn.AuctionID, req.PlayerID)
	if err != nil {
		return err
	}
	s.scheduler.Start(conn.AuctionID, round.EndTime)
	payload := PlayerSelectedPayload{PlayerID: round.PlayerID, EndTime: round.EndTime}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypePlayerSelected, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

type placeBidData struct {
	PlayerID uuid.UUID `json:"player_id"`
	Amount   int       `json:"amount"`
}

func (s *Service) handlePlaceBid(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var req placeBidData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	result, err := s.engine.PlaceBid(ctx, conn.AuctionID, conn.UserID, req.PlayerID, req.Amount)
	if err != nil {
		return err
	}

	bidPayload := BidPlacedPayload{
		BidderID: result.Bid.BidderID,
		PlayerID: result.Bid.TargetPlayerID,
		Amount:   result.Bid.Amount,
		EndTime:  result.EndTime,
	}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeBidPlaced, bidPayload, s.clock.Now()))

	if result.Sale != nil {
		// The round auto-resolved inside the bid's transaction.
		s.scheduler.Stop(conn.AuctionID)
		salePayload := BidConfirmedPayload{
			PlayerID:  result.Sale.PlayerID,
			CaptainID: result.Sale.CaptainID,
			Amount:    result.Sale.Amount,
			Auto:      true,
			Reason:    result.Sale.Reason,
		}
		s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeBidConfirmed, salePayload, s.clock.Now()))
	} else {
		s.scheduler.Start(conn.AuctionID, result.EndTime)
	}

	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleConfirmBid(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	sale, err := s.engine.ConfirmBid(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	payload := BidConfirmedPayload{
		PlayerID:  sale.PlayerID,
		CaptainID: sale.CaptainID,
		Amount:    sale.Amount,
	}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeBidConfirmed, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handlePassPlayer(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	playerID, err := s.engine.PassPlayer(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	payload := PlayerPassedPayload{PlayerID: playerID}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypePlayerPassed, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleNextPlayer(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	if err := s.engine.NextPlayer(ctx, conn.AuctionID); err != nil {
		return err
	}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeReadyForNextPlayer, nil, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

type undoSoldPlayerData struct {
	PlayerID uuid.UUID `json:"player_id"`
}

func (s *Service) handleUndoSoldPlayer(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var req undoSoldPlayerData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	if err := s.engine.UndoSoldPlayer(ctx, conn.AuctionID, req.PlayerID); err != nil {
		return err
	}
	payload := PlayerUndonePayload{PlayerID: req.PlayerID}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypePlayerUndone, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleEnterAssignmentPhase(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	if err := s.engine.EnterAssignmentPhase(ctx, conn.AuctionID); err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAssignmentPhaseStarted, nil, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

type manualAssignData struct {
	PlayerID  uuid.UUID `json:"player_id"`
	CaptainID uuid.UUID `json:"captain_id"`
}

func (s *Service) handleManualAssignPlayer(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var req manualAssignData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	if err := s.engine.ManualAssignPlayer(ctx, conn.AuctionID, req.PlayerID, req.CaptainID); err != nil {
		return err
	}
	payload := ManualAssignPayload{PlayerID: req.PlayerID, CaptainID: req.CaptainID}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypePlayerManuallyAssigned, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handlePauseAuction(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	change, err := s.engine.PauseAuction(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	payload := TimerChangePayload{RemainingSec: change.RemainingSec}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAuctionPaused, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleResumeAuction(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	change, err := s.engine.ResumeAuction(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	if change.NewEndTime != nil {
		s.scheduler.Start(conn.AuctionID, *change.NewEndTime)
	}
	payload := TimerChangePayload{NewEndTime: change.NewEndTime}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAuctionResumed, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handlePauseTimer(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	change, err := s.engine.PauseTimer(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	payload := TimerChangePayload{RemainingSec: change.RemainingSec}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeTimerPaused, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleResumeTimer(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	change, err := s.engine.ResumeTimer(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	if change.NewEndTime != nil {
		s.scheduler.Start(conn.AuctionID, *change.NewEndTime)
	}
	payload := TimerChangePayload{NewEndTime: change.NewEndTime}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeTimerResumed, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleCancelAuction(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	if err := s.engine.CancelAuction(ctx, conn.AuctionID); err != nil {
		return err
	}
	s.scheduler.Stop(conn.AuctionID)
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAuctionCancelled, nil, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleCompleteAuction(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	result, err := s.engine.CompleteAuction(ctx, conn.AuctionID)
	if err != nil {
		return err
	}
	payload := AuctionCompletedPayload{LinkedScrimID: result.LinkedScrimID}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeAuctionCompleted, payload, s.clock.Now()))
	s.broadcastState(ctx, conn.AuctionID)
	return nil
}

func (s *Service) handleRequestState(ctx context.Context, conn *Connection, _ json.RawMessage) error {
	return s.sendState(ctx, conn)
}

type chatMessageData struct {
	DisplayName string `json:"display_name,omitempty"`
	Message     string `json:"message"`
}

func (s *Service) handleChatMessage(_ context.Context, conn *Connection, data json.RawMessage) error {
	var req chatMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		return errMalformedData
	}
	if req.Message == "" {
		return errors.New("empty chat message")
	}
	payload := ChatMessagePayload{
		UserID:      conn.UserID,
		DisplayName: req.DisplayName,
		Message:     req.Message,
		SentAt:      s.clock.Now(),
	}
	s.broadcastEvent(conn.AuctionID, newEvent(conn.AuctionID, EventTypeChatMessage, payload, s.clock.Now()))
	return nil
}

var errMalformedData = errors.New("malformed command data")

func (s *Service) sendError(conn *Connection, command, code, message string) {
	payload := ErrorPayload{Command: command, Code: code, Message: message}
	s.cm.SendTo(conn, newEvent(conn.AuctionID, EventTypeError, payload, s.clock.Now()))
}

// errorCode buckets engine rejections for clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrAuctionNotFound),
		errors.Is(err, engine.ErrParticipantNotFound),
		errors.Is(err, engine.ErrPlayerNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrBidTooLow),
		errors.Is(err, engine.ErrBudgetExceeded):
		return "budget_violation"
	case errors.Is(err, engine.ErrNotCaptain),
		errors.Is(err, engine.ErrNotPlayer),
		errors.Is(err, engine.ErrInvalidAccessCode),
		errors.Is(err, engine.ErrAlreadyJoined),
		errors.Is(err, engine.ErrAuctionFull),
		errors.Is(err, engine.ErrTeamsFull),
		errors.Is(err, engine.ErrInvalidRole),
		errors.Is(err, errMalformedData):
		return "validation"
	case errors.Is(err, engine.ErrAuctionNotActive),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrRoundInProgress),
		errors.Is(err, engine.ErrNoActiveRound),
		errors.Is(err, engine.ErrRoundNotSold),
		errors.Is(err, engine.ErrPlayerNotOnBlock),
		errors.Is(err, engine.ErrPlayerAlreadyAssigned),
		errors.Is(err, engine.ErrPlayerNotAssigned),
		errors.Is(err, engine.ErrNothingToConfirm),
		errors.Is(err, engine.ErrTimerPaused),
		errors.Is(err, engine.ErrTimerAlreadyPaused),
		errors.Is(err, engine.ErrTimerNotPaused),
		errors.Is(err, engine.ErrNoCaptains):
		return "state_conflict"
	default:
		return "internal"
	}
}
