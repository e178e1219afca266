// internal/handlers/router.go
package handlers

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/middleware"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/jason-s-yu/wordclue/internal/registry"
	"github.com/sirupsen/logrus"
)

// RoundReader serves the mirrored round to HTTP readers.
type RoundReader interface {
	LoadRound(ctx context.Context, code string) (*models.RoundSnapshot, error)
}

// Server bundles the collaborators of the HTTP and websocket handlers.
type Server struct {
	Store    database.Store
	Registry *registry.Registry
	Rounds   RoundReader // optional
	Logger   *logrus.Logger

	// NewCode generates room codes. Defaults to six random characters from A-Z0-9.
	NewCode func() string

	// ClientBuffer is the outbound queue size per websocket.
	ClientBuffer int
}

// NewServer returns a Server with default code generation.
func NewServer(store database.Store, reg *registry.Registry, rounds RoundReader, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		Store:        store,
		Registry:     reg,
		Rounds:       rounds,
		Logger:       logger,
		NewCode:      newRoomCodeFunc(time.Now().UnixNano()),
		ClientBuffer: 32,
	}
}

// Router wires every route behind the logging and CORS middlewares.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(middleware.CORS)

	r.HandleFunc("/rooms", s.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/join", s.JoinRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.GetRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/round", s.GetRoundHandler).Methods(http.MethodGet)

	// legacy paths kept for existing clients
	r.HandleFunc("/create-room/", s.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/join-room/", s.JoinRoomHandler).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/ws/game/{code}/", s.RoomWSHandler)
	r.HandleFunc("/ws/game/{code}", s.RoomWSHandler)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "rooms": s.Registry.Len()})
	}).Methods(http.MethodGet)
	return r
}

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newRoomCodeFunc(seed int64) func() string {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		b := make([]byte, 6)
		for i := range b {
			b[i] = roomCodeAlphabet[rng.Intn(len(roomCodeAlphabet))]
		}
		return string(b)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
