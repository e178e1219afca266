// internal/hub/client.go
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Member is anything that can receive room broadcasts.
type Member interface {
	ID() string
	Write(msg map[string]interface{}) bool
}

// Client is one websocket connection's outbound side. The transport drains
// OutChan in its write pump and closes the socket once Done fires.
type Client struct {
	id      string
	OutChan chan map[string]interface{}

	logger    *logrus.Entry
	closeOnce sync.Once
	done      chan struct{}
	mu        sync.Mutex
	reason    string
}

// NewClient returns a client with an outbound buffer of size buf.
func NewClient(id string, buf int, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		id:      id,
		OutChan: make(chan map[string]interface{}, buf),
		logger:  logger.WithField("conn", id),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Write pushes a message onto OutChan without blocking. It reports false when
// the message was dropped because the buffer is full or the client is closed.
func (c *Client) Write(msg map[string]interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.OutChan <- msg:
		return true
	default:
		msgType, _ := msg["type"].(string)
		c.logger.WithField("type", msgType).Warn("outbound buffer full, dropping message")
		return false
	}
}

// WriteError is a convenience to send an error object.
func (c *Client) WriteError(message string) bool {
	return c.Write(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// Close asks the transport to flush pending messages and close the socket.
// Only the first reason is kept.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason returns the reason passed to Close.
func (c *Client) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}
