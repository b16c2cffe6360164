// Package ws pushes room events to players over websockets.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

// Frame is what a connected client receives for every event.
type Frame struct {
	Channel events.Channel  `json:"channel"`
	Event   json.RawMessage `json:"event"`
}

// Hub tracks open connections by room and by player and is the websocket
// sink of the event distributor.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	players map[uint]map[*Client]struct{}
	log     *zap.SugaredLogger
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		players: make(map[uint]map[*Client]struct{}),
		log:     logger.Named("ws.hub"),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Deliver queues msg on every matching connection. Private messages only
// reach the connections of their player in the same room.
func (h *Hub) Deliver(ctx context.Context, msg distributor.Message) error {
	frame, err := json.Marshal(Frame{Channel: msg.Channel, Event: msg.Payload})
	if err != nil {
		return err
	}

	for _, c := range h.targets(msg) {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Send(frame)
	}
	return nil
}

func (h *Hub) targets(msg distributor.Message) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	if msg.IsPrivate() {
		for c := range h.players[msg.PlayerID] {
			if c.roomCode == msg.RoomCode {
				out = append(out, c)
			}
		}
		return out
	}
	for c := range h.rooms[msg.RoomCode] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.roomCode] == nil {
		h.rooms[c.roomCode] = make(map[*Client]struct{})
	}
	h.rooms[c.roomCode][c] = struct{}{}
	if h.players[c.playerID] == nil {
		h.players[c.playerID] = make(map[*Client]struct{})
	}
	h.players[c.playerID][c] = struct{}{}

	h.log.Debugw("Websocket registered", "roomCode", c.roomCode, "playerId", c.playerID, "roomConnections", len(h.rooms[c.roomCode]))
}

// unregister reports whether c was the player's last open connection.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.rooms[c.roomCode]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, c.roomCode)
		}
	}
	last := true
	if conns, ok := h.players[c.playerID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.players, c.playerID)
		} else {
			last = false
		}
	}
	return last
}

// ConnectionCount returns the number of open connections in a room.
func (h *Hub) ConnectionCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// CloseAll closes every open connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, conns := range h.rooms {
		for c := range conns {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}
