// Package ws serves the runtime over WebSocket.
//
// Clients send {type, payload} frames that are dispatched as commands and
// answered with a frame of the same type, or {type: "error"} on failure.
// Every store change is pushed to every client as one "ontime-<key>" frame
// per changed key.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
	commandTimeout = 5 * time.Second
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Frame types pushed by the server outside of command replies.
const (
	TypeError          = "error"
	TypeClientID       = "client-id"
	TypeClientRename   = "client-rename"
	TypeClientRedirect = "client-redirect"
	TypeClientIdentify = "client-identify"
	TypeSnapshot       = "ontime"
	changePrefix       = "ontime-"
)

// Dispatcher runs commands. Implemented by *engine.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, payload any, source dispatch.Source) (dispatch.Result, error)
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Identify   bool      `json:"identify"`
	RemoteAddr string    `json:"remoteAddr"`
	Connected  time.Time `json:"connected"`
}

// client is one connection. send is closed by remove while holding the hub
// lock, so frames are only enqueued under that lock.
type client struct {
	info ClientInfo
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients.
//
// Thread-safety: all methods are safe for concurrent use. The directory
// methods (Rename, Redirect, Identify) and the store subscriber run on the
// engine goroutine and never block on a client.
type Hub struct {
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[string]*client
	dispatcher Dispatcher
	events     *eventstore.Store
}

// NewHub creates an empty hub. Bind must be called before serving.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Bind connects the hub to the runtime and subscribes to store changes. The
// returned func unsubscribes.
func (h *Hub) Bind(d Dispatcher, events *eventstore.Store) (unbind func()) {
	h.mu.Lock()
	h.dispatcher = d
	h.events = events
	h.mu.Unlock()
	return events.Subscribe(h.broadcastChange)
}

// Clients lists connected clients ordered by connection time.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ClientInfo, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connected.Before(out[j].Connected) })
	return out
}

// Rename asks the target client to adopt name.
func (h *Hub) Rename(target, name string) error {
	return h.update(target, func(c *client) Frame {
		c.info.Name = name
		return Frame{Type: TypeClientRename, Payload: map[string]string{"name": name}}
	})
}

// Redirect asks the target client to navigate to path.
func (h *Hub) Redirect(target, path string) error {
	return h.update(target, func(c *client) Frame {
		c.info.Path = path
		return Frame{Type: TypeClientRedirect, Payload: map[string]string{"path": path}}
	})
}

// Identify toggles the identification overlay on the target client.
func (h *Hub) Identify(target string, identify bool) error {
	return h.update(target, func(c *client) Frame {
		c.info.Identify = identify
		return Frame{Type: TypeClientIdentify, Payload: map[string]bool{"identify": identify}}
	})
}

func (h *Hub) update(target string, apply func(*client) Frame) error {
	h.mu.Lock()
	c, ok := h.clients[target]
	if !ok {
		h.mu.Unlock()
		return fault.Validation("Client %s not found", target)
	}
	f := apply(c)
	h.mu.Unlock()
	h.sendFrame(c, f)
	return nil
}

// ServeHTTP upgrades the connection and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.Must(uuid.NewV7()).String()
	c := &client{
		info: ClientInfo{
			ID:         id,
			Name:       "client-" + id[len(id)-8:],
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
			Connected:  time.Now(),
		},
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[id] = c
	events := h.events
	h.mu.Unlock()
	slog.Info("websocket client connected", "client", id, "remote", r.RemoteAddr)

	h.sendFrame(c, Frame{Type: TypeClientID, Payload: id})
	if events != nil {
		h.sendFrame(c, Frame{Type: TypeSnapshot, Payload: events.Poll()})
	}

	go c.writePump()
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.info.ID)
	close(c.send)
	h.mu.Unlock()
	slog.Info("websocket client disconnected", "client", c.info.ID)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read failed", "client", c.info.ID, "error", err)
			}
			return
		}
		h.sendFrame(c, h.handle(data))
	}
}

// handle runs one inbound frame and builds the reply.
func (h *Hub) handle(data []byte) Frame {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{Type: TypeError, Payload: "Invalid frame: " + err.Error()}
	}
	if in.Type == "" {
		return Frame{Type: TypeError, Payload: "Missing frame type"}
	}

	h.mu.RLock()
	d := h.dispatcher
	h.mu.RUnlock()
	if d == nil {
		return Frame{Type: TypeError, Payload: "Runtime is not available"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res, err := d.Dispatch(ctx, in.Type, in.Payload, dispatch.SourceWS)
	if err != nil {
		var fe *fault.Error
		if !errors.As(err, &fe) {
			slog.Error("websocket command failed", "command", in.Type, "error", err)
		}
		return Frame{Type: TypeError, Payload: err.Error()}
	}
	return Frame{Type: in.Type, Payload: res.Payload}
}

// broadcastChange pushes one frame per changed key to every client.
func (h *Hub) broadcastChange(c eventstore.Change) {
	frames := make([][]byte, 0, len(c.Keys))
	for _, key := range c.Keys {
		value, ok := c.Snapshot.Value(key)
		if !ok {
			continue
		}
		data, err := json.Marshal(Frame{Type: changePrefix + string(key), Payload: value})
		if err != nil {
			slog.Error("websocket frame encode failed", "key", key, "error", err)
			continue
		}
		frames = append(frames, data)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cl := range h.clients {
		for _, data := range frames {
			h.enqueue(cl, data)
		}
	}
}

func (h *Hub) sendFrame(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("websocket frame encode failed", "type", f.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.info.ID] != c {
		return
	}
	h.enqueue(c, data)
}

// enqueue never blocks; a client whose buffer is full loses the frame. The
// caller holds h.mu.
func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Warn("websocket client too slow, frame dropped", "client", c.info.ID)
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
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
