package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"realtime-chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 64
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client send buffer full")
)

// Client is one websocket connection. Outbound frames are queued on a buffered
// channel drained by a single writer goroutine.
type Client struct {
	conn   *websocket.Conn
	info   ConnInfo
	router *Router
	typing *TypingTracker
	log    *zap.Logger

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, info ConnInfo, router *Router, typingQuiet time.Duration, log *zap.Logger) *Client {
	c := &Client{
		conn:   conn,
		info:   info,
		router: router,
		log:    log.With(info.logFields()...),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	c.typing = NewTypingTracker(typingQuiet, func(subject string, isTyping bool) {
		if err := c.Send(models.EventTyping, models.TypingEvent{FromUserID: subject, IsTyping: isTyping}); err != nil {
			c.log.Debug("typing event dropped", zap.Error(err))
		}
	})
	return c
}

func (c *Client) ID() string {
	return c.info.ConnID
}

// Send queues an event frame without blocking.
func (c *Client) Send(event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) ObserveTyping(fromUserID string, isTyping bool) {
	c.typing.Observe(fromUserID, isTyping)
}

// Close stops the writer and cancels pending typing timers. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.typing.Close()
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}

// readPump blocks until the peer goes away and returns the read error.
func (c *Client) readPump() error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(raw)
	}
}

// handleFrame processes one inbound frame. A panic here is contained to this frame.
func (c *Client) handleFrame(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("websocket frame handler panic", zap.Any("panic", r))
		}
	}()

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("malformed frame", zap.Error(err))
		return
	}

	switch env.Event {
	case models.EventTyping:
		var req models.TypingRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.ToUserID == "" {
			c.log.Debug("malformed typing frame", zap.Error(err))
			return
		}
		if req.ToUserID == c.info.UserID {
			return
		}
		c.router.DeliverTyping(c.info.UserID, req.ToUserID, req.IsTyping)
	default:
		c.log.Debug("unknown client event", zap.String("event", env.Event))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
