package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/engine"
	"github.com/clanarena/draftauction/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of this handler.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades GET /ws/auction?auction_id=...&user_id=...
// into a room connection. The initial room snapshot is pushed to the
// new connection right after registration.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.URL.Query().Get("auction_id"))
	if err != nil {
		http.Error(w, "invalid auction_id", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	// Reject upgrades for auctions that do not exist.
	if _, err := s.projector.Snapshot(r.Context(), auctionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to load auction for upgrade")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConnection(ws, auctionID, userID, s.cm)
	s.cm.register <- conn

	go conn.writePump()
	go conn.readPump()

	if err := s.sendState(r.Context(), conn); err != nil {
		log.Warn().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to send initial room state")
	}
}

// HandleCreateAuction serves POST /api/auctions.
func (s *Service) HandleCreateAuction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req engine.CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	auction, err := s.engine.CreateAuction(r.Context(), req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(auction)
}

// HandleStats serves GET /ws/stats with per-room connection counts.
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"rooms": s.cm.Stats(),
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
