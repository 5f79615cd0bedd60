package ws

import (
	"encoding/json"
	"log"
)

// Event is the envelope pushed to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	EventNewMessage          = "newMessage"
	EventMentionNotification = "mentionNotification"
)

type subscription struct {
	client *Client
	room   string
}

type roomEvent struct {
	room    string
	payload []byte
}

// Hub keeps the process-wide room registry: one room per conversation plus a
// personal room per user id, joined automatically on connect. Room state is
// local bookkeeping only; nothing here is persisted, and a disconnect drops
// the connection from every room.
type Hub struct {
	rooms   map[string]map[*Client]bool
	clients map[*Client]map[string]bool

	register   chan *Client
	unregister chan *Client
	join       chan subscription
	leave      chan subscription
	broadcast  chan roomEvent
}

func NewHub() *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan roomEvent, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = make(map[string]bool)
			// Every connection joins its user's personal room so
			// mention notifications reach all of the user's devices.
			h.joinRoom(c, c.userID)
			log.Printf("ws: client registered for user %s", c.userID)
		case c := <-h.unregister:
			h.dropClient(c)
		case sub := <-h.join:
			if _, ok := h.clients[sub.client]; ok {
				h.joinRoom(sub.client, sub.room)
			}
		case sub := <-h.leave:
			h.leaveRoom(sub.client, sub.room)
		case ev := <-h.broadcast:
			for c := range h.rooms[ev.room] {
				select {
				case c.send <- ev.payload:
				default:
					// Slow consumer; drop the event rather than
					// block the hub loop.
				}
			}
		}
	}
}

func (h *Hub) joinRoom(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	h.clients[c][room] = true
}

func (h *Hub) leaveRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.clients[c]; ok {
		delete(rooms, room)
	}
}

func (h *Hub) dropClient(c *Client) {
	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range rooms {
		h.leaveRoom(c, room)
	}
	delete(h.clients, c)
	close(c.send)
	log.Printf("ws: client for user %s disconnected", c.userID)
}

// RegisterClient adds a connection to the hub and its personal room.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient drops a connection from all rooms.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// JoinRoom subscribes a connection to a room. Membership in the underlying
// conversation must have been verified by the caller.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.join <- subscription{client: c, room: room}
}

// LeaveRoom unsubscribes a connection from a room.
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.leave <- subscription{client: c, room: room}
}

// BroadcastToRoom pushes an event to every connection currently in the room.
func (h *Hub) BroadcastToRoom(room string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ws: failed to marshal %s event: %v", ev.Type, err)
		return
	}
	h.broadcast <- roomEvent{room: room, payload: payload}
}
