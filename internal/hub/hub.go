// Package hub is a delivery host that pushes reminders to websocket
// subscribers of a conversation.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/dispatch"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Message types sent to subscribers.
const (
	TypeSubscribed = "subscribed"
	TypeReminder   = "reminder"
)

// ErrNoSubscriber means nobody is listening on the conversation, so the
// reminder must stay pending.
var ErrNoSubscriber = errors.New("no live subscriber for conversation")

// Message is the JSON frame written to subscribers.
type Message struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	conversationID string
}

// Hub tracks websocket subscribers per conversation id and implements the
// reference-first delivery convention on top of them.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are other services, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades GET /stream?conversation=<id> to a subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation")
	if conversationID == "" {
		http.Error(w, "conversation query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:            h,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		conversationID: conversationID,
	}

	// Queued before registration, so it is always the first frame and a
	// subscriber that has read it is guaranteed to be registered.
	if data, err := json.Marshal(Message{
		Type:           TypeSubscribed,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}); err == nil {
		c.send <- data
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// Subscribers returns the number of live connections on conversationID.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// ContinueConversationReference runs cb with a turn bound to ref. It fails
// up front when nobody is subscribed to the conversation.
func (h *Hub) ContinueConversationReference(ctx context.Context, ref destination.Reference, cb dispatch.Callback, _ string) error {
	if h.Subscribers(ref.Conversation.ID) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubscriber, ref.Conversation.ID)
	}
	return cb(ctx, &turnContext{hub: h, ref: ref})
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for c := range set {
			close(c.send)
		}
		delete(h.subs, id)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.subs[c.conversationID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.conversationID] = set
	}
	set[c] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	h.logger.Info("subscriber connected",
		zap.String("conversation_id", c.conversationID),
		zap.Int("subscribers", n),
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		h.logger.Info("subscriber disconnected", zap.String("conversation_id", c.conversationID))
	}
}

// removeLocked drops c and closes its send channel. Caller holds h.mu.
func (h *Hub) removeLocked(c *client) bool {
	set, ok := h.subs[c.conversationID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.subs, c.conversationID)
	}
	return true
}

// publish queues data for every subscriber of conversationID and returns how
// many accepted it. Subscribers with a full buffer are dropped.
func (h *Hub) publish(conversationID string, data []byte) int {
	var (
		delivered int
		stale     []*client
	)

	h.mu.RLock()
	for c := range h.subs[conversationID] {
		select {
		case c.send <- data:
			delivered++
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	if len(stale) > 0 {
		h.mu.Lock()
		for _, c := range stale {
			h.removeLocked(c)
		}
		h.mu.Unlock()
		h.logger.Warn("dropped slow subscribers",
			zap.String("conversation_id", conversationID),
			zap.Int("count", len(stale)),
		)
	}
	return delivered
}

type turnContext struct {
	hub *Hub
	ref destination.Reference
}

func (t *turnContext) SendActivity(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		Type:           TypeReminder,
		ConversationID: t.ref.Conversation.ID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if t.hub.publish(t.ref.Conversation.ID, data) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubscriber, t.ref.Conversation.ID)
	}
	return nil
}

// readPump discards inbound frames and keeps the read deadline fresh; it
// exists to notice disconnects and answer pings.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("subscriber read error",
					zap.String("conversation_id", c.conversationID), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ dispatch.ReferenceFirstHost = (*Hub)(nil)
