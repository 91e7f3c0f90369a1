package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrInvalidRoom   = errors.New("invalid room")
	ErrRoomForbidden = errors.New("room access denied")
)

const (
	maxFrameBytes  = 8 * 1024
	maxMessageBody = 2000
)

// Frame is a client-to-server message.
type Frame struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Content string `json:"content,omitempty"`
}

// Options tunes connection timings.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
	CheckOrigin  func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Client is a single websocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity Identity
	opts     Options

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, who Identity, opts Options) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		identity: who,
		opts:     opts,
		send:     make(chan []byte, opts.SendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

// Serve upgrades the request and runs the connection until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, who Identity, opts Options) error {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := newClient(h, conn, who, opts)
	if err := h.Join(r.Context(), c, UserRoom(who.UserID)); err != nil {
		_ = conn.Close()
		return err
	}
	h.logger.Debug("realtime client connected", zap.String("user_id", who.UserID))

	go c.writePump()
	c.readPump(context.Background())
	return nil
}

// enqueue queues payload without blocking. It returns false only when the
// buffer is full; sends after close are discarded.
func (c *Client) enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *Client) roomList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	return out
}

func (c *Client) reply(event Event) {
	event.SentAt = c.hub.now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
		c.hub.logger.Debug("realtime client disconnected", zap.String("user_id", c.identity.UserID))
	}()

	pongWait := c.opts.PingInterval * 2
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("realtime read failed", zap.Error(err))
			}
			return
		}
		c.handle(ctx, frame)
	}
}

func (c *Client) handle(ctx context.Context, frame Frame) {
	switch frame.Type {
	case "join":
		if err := c.hub.Join(ctx, c, frame.Room); err != nil {
			c.reply(Event{Type: "error", Room: frame.Room, Data: map[string]string{"message": err.Error()}})
			return
		}
		c.reply(Event{Type: "joined", Room: frame.Room})
	case "leave":
		c.hub.Leave(c, frame.Room)
		c.reply(Event{Type: "left", Room: frame.Room})
	case "message":
		body := strings.TrimSpace(frame.Content)
		if !c.inRoom(frame.Room) || body == "" || len(body) > maxMessageBody {
			c.reply(Event{Type: "error", Room: frame.Room, Data: map[string]string{"message": "message rejected"}})
			return
		}
		c.hub.Publish(frame.Room, Event{Type: "message", Data: map[string]string{
			"user_id": c.identity.UserID,
			"name":    c.identity.Name,
			"content": body,
		}})
	case "ping":
		c.reply(Event{Type: "pong"})
	default:
		c.reply(Event{Type: "error", Data: map[string]string{"message": "unknown frame type"}})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
