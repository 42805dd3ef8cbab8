package ws

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-app/internal/models"
	"chat-app/internal/observability"
)

const writeTimeout = 5 * time.Second

// Dispatcher pushes a freshly persisted message to the recipient's live
// connection, if any. Delivery is best effort: the message is already durable
// and a failed push only delays visibility until the next fetch.
type Dispatcher interface {
	Dispatch(msg models.Message)
}

// Conn is the subset of *websocket.Conn the registry writes to. Tests
// substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	info ConnInfo

	// gorilla connections allow one concurrent writer; presence broadcasts
	// and message dispatch both write.
	writeMu sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Registry maps each online user to their single live connection.
type Registry struct {
	mu      sync.RWMutex
	clients map[int]*client
	logger  *zap.SugaredLogger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		clients: make(map[int]*client),
		logger:  logger,
	}
}

// Register records conn as the user's current connection, superseding and
// closing any previous one, then broadcasts the new presence snapshot.
func (r *Registry) Register(userID int, conn Conn, info ConnInfo) {
	r.mu.Lock()
	prev := r.clients[userID]
	r.clients[userID] = &client{conn: conn, info: info}
	r.mu.Unlock()

	if prev != nil && prev.conn != conn {
		_ = prev.conn.Close()
	}
	r.broadcastPresence()
}

// Unregister removes the user's entry only when conn is still the current
// connection, so a slow teardown of a superseded connection cannot erase a
// newer registration. Reports whether an entry was removed.
func (r *Registry) Unregister(userID int, conn Conn) bool {
	r.mu.Lock()
	cur, ok := r.clients[userID]
	removed := ok && cur.conn == conn
	if removed {
		delete(r.clients, userID)
	}
	r.mu.Unlock()

	if removed {
		r.broadcastPresence()
	}
	return removed
}

// Lookup returns whether the user currently has a live connection.
func (r *Registry) Lookup(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[userID]
	return ok
}

// Snapshot returns the ids of all registered users in ascending order.
func (r *Registry) Snapshot() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

// Dispatch pushes msg to the recipient's connection if one is registered.
// Failures are logged and the dead connection is discarded; nothing
// propagates to the caller.
func (r *Registry) Dispatch(msg models.Message) {
	r.mu.RLock()
	target := r.clients[msg.RecipientID]
	r.mu.RUnlock()
	if target == nil {
		observability.IncMessageSent("stored")
		return
	}

	payload, _ := json.Marshal(models.Event{Event: models.EventNewMessage, Message: &msg})
	if err := r.write(msg.RecipientID, target, payload); err != nil {
		r.logger.Warnw("message dispatch failed",
			"recipientId", msg.RecipientID, "messageId", msg.ID, "error", err)
		observability.IncMessageSent("stored")
		return
	}
	observability.IncMessageSent("pushed")
}

func (r *Registry) broadcastPresence() {
	r.mu.RLock()
	targets := make(map[int]*client, len(r.clients))
	for id, c := range r.clients {
		targets[id] = c
	}
	r.mu.RUnlock()

	ids := make([]int, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	payload, _ := json.Marshal(models.Event{Event: models.EventOnlineUsers, OnlineUsers: ids})
	for id, c := range targets {
		if err := r.write(id, c, payload); err != nil {
			r.logger.Warnw("presence broadcast failed", "userId", id, "error", err)
		}
	}
}

// write sends payload to one client, cleaning the entry up on failure.
func (r *Registry) write(userID int, c *client, payload []byte) error {
	if err := c.write(payload); err != nil {
		_ = c.conn.Close()
		r.Unregister(userID, c.conn)
		r.publishWSError(c.info, err)
		observability.IncWSEvent("dm", "ws_error")
		return err
	}
	return nil
}

func (r *Registry) publishWSError(info ConnInfo, err error) {
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   connEventPayload(info, "ws_error", err.Error()),
	}, headers)
}
