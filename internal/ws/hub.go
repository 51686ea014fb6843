package ws

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
)

// Conn is a live connection handle. Send must not block; implementations queue
// or fail fast so the hub can fan out while holding its lock.
type Conn interface {
	ID() string
	Send(event string, payload any) error
	ObserveTyping(fromUserID string, isTyping bool)
}

// Hub is the presence registry: at most one live connection per user.
// A second connection for the same user supersedes the first.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Register binds conn to userID and returns the connection it replaced, if any.
// The replaced connection is not closed here.
func (h *Hub) Register(userID string, conn Conn) Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.conns[userID]
	h.conns[userID] = conn
	if prev != nil && prev != conn {
		h.log.Info("connection superseded", zap.String("user_id", userID), zap.String("old_conn", prev.ID()), zap.String("new_conn", conn.ID()))
	} else {
		prev = nil
	}
	h.broadcastLocked()
	return prev
}

// Unregister removes userID only while conn is still the registered handle.
// A disconnect from a superseded connection is a no-op.
func (h *Hub) Unregister(userID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(h.conns, userID)
	h.broadcastLocked()
	return true
}

// Lookup returns the live connection for userID.
func (h *Hub) Lookup(userID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[userID]
	return conn, ok
}

// OnlineSnapshot returns the online user ids in sorted order.
func (h *Hub) OnlineSnapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() []string {
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) broadcastLocked() {
	ids := h.snapshotLocked()
	observability.SetOnlineUsers(len(ids))
	for userID, conn := range h.conns {
		if err := conn.Send(models.EventOnlineUsers, ids); err != nil {
			h.log.Debug("online users broadcast skipped", zap.String("user_id", userID), zap.String("conn_id", conn.ID()), zap.Error(err))
		}
	}
}
