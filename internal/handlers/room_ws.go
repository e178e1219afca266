// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/wordclue/internal/hub"
	"github.com/jason-s-yu/wordclue/internal/middleware"
	"github.com/jason-s-yu/wordclue/internal/registry"
	"github.com/jason-s-yu/wordclue/internal/session"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// RoomWSHandler upgrades the request and attaches the socket to the room's
// coordinator. The client authenticates afterwards with an init message.
func (s *Server) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])
	remoteAddr := r.RemoteAddr

	coord, err := s.Registry.GetOrCreate(r.Context(), code)
	if errors.Is(err, registry.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.WithError(err).WithField("room", code).Error("failed to resolve coordinator")
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	entry := s.Logger.WithFields(logrus.Fields{"room": code, "remote": remoteAddr})
	client := hub.NewClient(uuid.NewString(), s.ClientBuffer, entry)

	// The coordinator may have gone idle between lookup and connect.
	if err := coord.Connect(client); errors.Is(err, session.ErrCoordinatorStopped) {
		coord, err = s.Registry.GetOrCreate(r.Context(), code)
		if err == nil {
			err = coord.Connect(client)
		}
		if err != nil {
			entry.WithError(err).Warn("room unavailable after retry")
			c.Close(RoomUnavailableError, "room unavailable")
			return
		}
	} else if err != nil {
		c.Close(RoomUnavailableError, "room unavailable")
		return
	}
	middleware.LogWebSocketConnect(s.Logger, remoteAddr, code)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go writePump(ctx, cancel, c, client, entry)

	readErr := readPump(ctx, c, coord, client, entry)

	coord.Disconnect(client)
	middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, code, readErr)
}

// readPump decodes intents and forwards them to the coordinator until the
// socket closes.
func readPump(ctx context.Context, c *websocket.Conn, coord *session.Coordinator, client *hub.Client, logger *logrus.Entry) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var in session.Intent
		if err := json.Unmarshal(msg, &in); err != nil {
			logger.Debugf("invalid json: %v", err)
			client.WriteError("Invalid JSON format")
			continue
		}
		if in.Type == "" {
			client.WriteError("Missing message type")
			continue
		}
		if err := coord.Submit(client, in); err != nil {
			return err
		}
	}
}

// writePump drains the client's queue onto the socket. When the coordinator
// closes the client, pending messages are flushed before the close frame.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, client *hub.Client, logger *logrus.Entry) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.OutChan:
			if err := writeMessage(ctx, c, msg); err != nil {
				logger.Debugf("write failed: %v", err)
				return
			}
		case <-client.Done():
			if err := flush(ctx, c, client); err != nil {
				return
			}
			_ = c.Close(websocket.StatusNormalClosure, client.CloseReason())
			return
		}
	}
}

func flush(ctx context.Context, c *websocket.Conn, client *hub.Client) error {
	for {
		select {
		case msg := <-client.OutChan:
			if err := writeMessage(ctx, c, msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func writeMessage(ctx context.Context, c *websocket.Conn, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
