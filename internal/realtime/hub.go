// Package realtime pushes chat events to connected websocket clients.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Event is the envelope written to subscribers.
type Event struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	Data   any    `json:"data"`
}

// Event types.
const (
	EventMessageNew     = "message.new"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
)

// Publisher fans events out to the subscribers of a chat.
type Publisher interface {
	Publish(chatID, eventType string, data any)
}

type envelope struct {
	chatID string
	data   []byte
}

type countReq struct {
	chatID string
	reply  chan int
}

// Hub tracks clients per chat room. All room state is owned by Run.
type Hub struct {
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	count      chan countReq
	done       chan struct{}
}

// NewHub returns a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		count:      make(chan countReq),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			h.rooms = nil
			return
		case c := <-h.register:
			room := h.rooms[c.ChatID]
			if room == nil {
				room = make(map[*Client]struct{})
				h.rooms[c.ChatID] = room
			}
			room[c] = struct{}{}
			log.Debug().Str("chat_id", c.ChatID).Str("user_id", c.UserID).Int("room_size", len(room)).Msg("ws client joined")
		case c := <-h.unregister:
			h.drop(c)
		case m := <-h.broadcast:
			for c := range h.rooms[m.chatID] {
				select {
				case c.send <- m.data:
				default:
					// Slow consumer.
					h.drop(c)
				}
			}
		case q := <-h.count:
			q.reply <- len(h.rooms[q.chatID])
		}
	}
}

func (h *Hub) drop(c *Client) {
	room := h.rooms[c.ChatID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.ChatID)
	}
	log.Debug().Str("chat_id", c.ChatID).Str("user_id", c.UserID).Msg("ws client left")
}

// Publish queues an event for every subscriber of chatID. It never blocks
// once the hub has stopped.
func (h *Hub) Publish(chatID, eventType string, data any) {
	b, err := json.Marshal(Event{Type: eventType, ChatID: chatID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("ws marshal event")
		return
	}
	select {
	case h.broadcast <- envelope{chatID: chatID, data: b}:
	case <-h.done:
	}
}

// Subscribers reports how many clients are in the room of chatID.
func (h *Hub) Subscribers(chatID string) int {
	q := countReq{chatID: chatID, reply: make(chan int, 1)}
	select {
	case h.count <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, string, any) {}
