// internal/hub/hub.go
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub keeps the broadcast groups, one per room code.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
	logger *logrus.Logger
}

// New returns an empty hub.
func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		groups: make(map[string]map[string]Member),
		logger: logger,
	}
}

// Join adds m to the room group, replacing any member with the same id.
func (h *Hub) Join(room string, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[room]
	if !ok {
		g = make(map[string]Member)
		h.groups[room] = g
	}
	g[m.ID()] = m
}

// Leave removes the member with id from the room group.
func (h *Hub) Leave(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[room]
	if !ok {
		return
	}
	delete(g, id)
	if len(g) == 0 {
		delete(h.groups, room)
	}
}

// Broadcast writes msg to every member of the room.
func (h *Hub) Broadcast(room string, msg map[string]interface{}) {
	for _, m := range h.members(room) {
		if !m.Write(msg) {
			h.logger.WithFields(logrus.Fields{
				"room": room,
				"conn": m.ID(),
				"type": msg["type"],
			}).Debug("broadcast not delivered")
		}
	}
}

// Send writes msg to a single member. It reports whether the member exists
// and accepted the message.
func (h *Hub) Send(room, id string, msg map[string]interface{}) bool {
	h.mu.RLock()
	m, ok := h.groups[room][id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return m.Write(msg)
}

// Size is the number of members in the room group.
func (h *Hub) Size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[room])
}

func (h *Hub) members(room string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g := h.groups[room]
	out := make([]Member, 0, len(g))
	for _, m := range g {
		out = append(out, m)
	}
	return out
}
