package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a server-to-client frame.
type Event struct {
	Type   string      `json:"type"`
	Room   string      `json:"room,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	SentAt time.Time   `json:"sent_at"`
}

// Identity describes the authenticated owner of a connection.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

// Authorizer decides whether an identity may subscribe to a room.
type Authorizer interface {
	CanJoin(ctx context.Context, who Identity, room string) (bool, error)
}

// Publisher is the narrow interface services use to push events.
type Publisher interface {
	Publish(room string, event Event)
}

// CommunityRoom carries events of the community-wide forum.
const CommunityRoom = "forum:community"

// ClassRoom returns the room name used for class-wide events.
func ClassRoom(classID string) string { return "class:" + classID }

// UserRoom returns the private room every connection joins automatically.
func UserRoom(userID string) string { return "user:" + userID }

// ParseRoom splits "kind:id" room names.
func ParseRoom(room string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(room, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

// Hub tracks live connections grouped by room and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	auth   Authorizer
	logger *zap.Logger
	now    func() time.Time
}

// NewHub constructs an empty hub.
func NewHub(auth Authorizer, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// Publish delivers event to every client in room. Slow clients whose send
// buffer is full are disconnected rather than blocking the publisher.
func (h *Hub) Publish(room string, event Event) {
	event.Room = room
	if event.SentAt.IsZero() {
		event.SentAt = h.now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to encode realtime event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			h.logger.Warn("dropping slow realtime client", zap.String("user_id", c.identity.UserID))
			h.Remove(c)
		}
	}
}

// RoomSize reports how many clients are subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Connections reports the number of connected clients. Every client sits in
// its own user room for the lifetime of the connection.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for room, members := range h.rooms {
		if strings.HasPrefix(room, "user:") {
			total += len(members)
		}
	}
	return total
}

// Join subscribes c to room after checking authorization.
func (h *Hub) Join(ctx context.Context, c *Client, room string) error {
	kind, id, ok := ParseRoom(room)
	if !ok {
		return ErrInvalidRoom
	}
	if kind == "user" && id != c.identity.UserID {
		return ErrRoomForbidden
	}
	if kind != "user" {
		if h.auth == nil {
			return ErrRoomForbidden
		}
		allowed, err := h.auth.CanJoin(ctx, c.identity, room)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRoomForbidden
		}
	}

	h.mu.Lock()
	members, exists := h.rooms[room]
	if !exists {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	c.addRoom(room)
	return nil
}

// Leave unsubscribes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
	c.removeRoom(room)
}

// Remove detaches c from every room and closes its outbound queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	for _, room := range c.roomList() {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
	c.closeSend()
}

func (h *Hub) leaveLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			clients[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.closeSend()
	}
}
