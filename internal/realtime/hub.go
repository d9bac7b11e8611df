package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Publisher is the event-emission surface the service layer depends on.
type Publisher interface {
	ToRoom(room, event string, data any)
	ToAll(event string, data any)
}

// frame is the wire envelope for every websocket event, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub is the in-process event bus. Connections subscribe to named rooms;
// publishing to a room fans the frame out to every subscriber. Rooms are
// created on first join and dropped when the last subscriber leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	conns map[*Conn]struct{}
	log   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		conns: make(map[*Conn]struct{}),
		log:   log,
	}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	for room, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Join subscribes a connection to a room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Conn]struct{})
		h.rooms[room] = subs
	}
	subs[c] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the connection is subscribed to the room.
func (h *Hub) InRoom(room string, c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

// RoomSize returns the number of subscribers in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ToRoom publishes an event to every subscriber of the room.
func (h *Hub) ToRoom(room, event string, data any) {
	h.toRoomExcept(room, event, data, nil)
}

// ToRoomExcept publishes to a room, skipping one connection. Used for
// events the originator should not receive back, such as typing fan-out.
func (h *Hub) ToRoomExcept(room, event string, data any, except *Conn) {
	h.toRoomExcept(room, event, data, except)
}

func (h *Hub) toRoomExcept(room, event string, data any, except *Conn) {
	buf, err := encodeFrame(event, data)
	if err != nil {
		h.log.Error("encode event", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	subs := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			subs = append(subs, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range subs {
		c.send(buf)
	}
}

// ToAll publishes an event to every connection regardless of rooms.
func (h *Hub) ToAll(event string, data any) {
	h.toAllExcept(event, data, nil)
}

func (h *Hub) toAllExcept(event string, data any, except *Conn) {
	buf, err := encodeFrame(event, data)
	if err != nil {
		h.log.Error("encode event", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		if c != except {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.send(buf)
	}
}

func encodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(frame{Event: event, Data: raw})
}
