// internal/handlers/rooms.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/wordclue/internal/cache"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/jason-s-yu/wordclue/internal/session"
)

const (
	maxPseudoLen     = 50
	maxCodeAttempts  = 10
	lookupTimeout    = 5 * time.Second
	defaultTotalRounds = 3
)

type createRoomRequest struct {
	Pseudo string `json:"pseudo"`
}

type joinRoomRequest struct {
	RoomCode string `json:"room_code"`
	Pseudo   string `json:"pseudo"`
}

type sessionResponse struct {
	RoomCode  string `json:"room_code"`
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Pseudo    string `json:"pseudo"`
}

func newSessionResponse(p *models.Player) sessionResponse {
	return sessionResponse{
		RoomCode:  p.RoomCode,
		SessionID: p.SessionID.String(),
		PlayerID:  p.ID.String(),
		Pseudo:    p.Pseudo,
	}
}

// CreateRoomHandler provisions a room and its owner.
//
// Request payload: { "pseudo": "alice" }
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pseudo := strings.TrimSpace(req.Pseudo)
	if pseudo == "" {
		writeError(w, http.StatusBadRequest, "Pseudo is required")
		return
	}
	if len(pseudo) > maxPseudoLen {
		writeError(w, http.StatusBadRequest, "Pseudo is too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	var room *models.Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := &models.Room{
			Code:        s.NewCode(),
			TotalRounds: defaultTotalRounds,
			IsActive:    true,
			CreatedAt:   time.Now().UTC(),
		}
		err := s.Store.CreateRoom(ctx, candidate)
		if err == nil {
			room = candidate
			break
		}
		if !errors.Is(err, database.ErrConflict) {
			s.Logger.WithError(err).Error("failed to create room")
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}
	}
	if room == nil {
		s.Logger.Error("exhausted room code attempts")
		writeError(w, http.StatusServiceUnavailable, "could not allocate a room code")
		return
	}

	owner := &models.Player{RoomCode: room.Code, Pseudo: pseudo, IsOwner: true}
	if err := s.Store.CreatePlayer(ctx, owner); err != nil {
		s.Logger.WithError(err).WithField("room", room.Code).Error("failed to create owner")
		_ = s.Store.DeleteRoom(ctx, room.Code)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	s.Logger.WithField("room", room.Code).Infof("room created by %s", pseudo)
	writeJSON(w, http.StatusCreated, newSessionResponse(owner))
}

// JoinRoomHandler adds a player to an existing room.
//
// Request payload: { "room_code": "AB12CD", "pseudo": "bob" }
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	pseudo := strings.TrimSpace(req.Pseudo)
	if code == "" || pseudo == "" {
		writeError(w, http.StatusBadRequest, "Missing room code or pseudo")
		return
	}
	if len(pseudo) > maxPseudoLen {
		writeError(w, http.StatusBadRequest, "Pseudo is too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	room, err := s.Store.GetRoom(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		s.Logger.WithError(err).WithField("room", code).Error("failed to load room")
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	existing, err := s.Store.ListPlayers(ctx, code)
	if err != nil {
		s.Logger.WithError(err).WithField("room", code).Error("failed to list players")
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	// An emptied room is revived and its first joiner owns it.
	player := &models.Player{RoomCode: code, Pseudo: pseudo, IsOwner: len(existing) == 0}
	if err := s.Store.CreatePlayer(ctx, player); err != nil {
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusConflict, "Pseudo already taken in this room")
			return
		}
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Room not found")
			return
		}
		s.Logger.WithError(err).WithField("room", code).Error("failed to create player")
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}
	if !room.IsActive {
		room.IsActive = true
		if err := s.Store.UpdateRoom(ctx, room); err != nil {
			s.Logger.WithError(err).WithField("room", code).Warn("failed to reactivate room")
		}
	}

	s.Logger.WithField("room", code).Infof("%s joined", pseudo)
	writeJSON(w, http.StatusCreated, newSessionResponse(player))
}

type roomResponse struct {
	Code            string           `json:"room_code"`
	IsActive        bool             `json:"is_active"`
	Status          session.Status   `json:"status"`
	TotalRounds     int              `json:"total_rounds"`
	CompletedRounds int              `json:"completed_rounds"`
	Players         []*models.Player `json:"players"`
	Connections     int              `json:"connections"`
}

// GetRoomHandler returns the room record, its players and the live status.
func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	room, err := s.Store.GetRoom(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		s.Logger.WithError(err).WithField("room", code).Error("failed to load room")
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	players, err := s.Store.ListPlayers(ctx, code)
	if err != nil {
		s.Logger.WithError(err).WithField("room", code).Error("failed to list players")
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}

	resp := roomResponse{
		Code:            room.Code,
		IsActive:        room.IsActive,
		Status:          session.StatusLobby,
		TotalRounds:     room.TotalRounds,
		CompletedRounds: room.CompletedRounds,
		Players:         players,
	}
	if coord, ok := s.Registry.Get(code); ok {
		if snap, err := coord.Snapshot(ctx); err == nil {
			resp.Status = snap.Status
			resp.Connections = snap.Connections
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRoundHandler returns the redacted current round. The mirror is tried
// first so readers do not queue behind the coordinator.
func (s *Server) GetRoundHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	if s.Rounds != nil {
		snap, err := s.Rounds.LoadRound(ctx, code)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, snap)
			return
		case errors.Is(err, cache.ErrMiss):
		default:
			s.Logger.WithError(err).WithField("room", code).Warn("round mirror read failed")
		}
	}

	if coord, ok := s.Registry.Get(code); ok {
		snap, err := coord.Snapshot(ctx)
		if err == nil && snap.Round != nil {
			writeJSON(w, http.StatusOK, snap.Round)
			return
		}
	}
	writeError(w, http.StatusNotFound, "no active round")
}
