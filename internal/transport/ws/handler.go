package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/game"
	"github.com/mroshb/trivia_arena/internal/security"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

const channelSync events.Channel = "sync"

// Presence is what the handler needs from the room service.
type Presence interface {
	SetConnected(ctx context.Context, playerID uint, connected bool) error
	GameState(ctx context.Context, code string) (*game.GameState, error)
}

type Options struct {
	OriginPatterns []string
	PingInterval   time.Duration
	SendBuffer     int
}

// Handler upgrades ticket-bearing requests to websockets and keeps each
// player's connected flag in step with their open connections.
type Handler struct {
	hub      *Hub
	presence Presence
	secret   string
	opts     Options
	log      *zap.SugaredLogger
}

func NewHandler(hub *Hub, presence Presence, secret string, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Handler{
		hub:      hub,
		presence: presence,
		secret:   secret,
		opts:     opts,
		log:      logger.Named("ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		http.Error(w, "missing ticket", http.StatusUnauthorized)
		return
	}
	claims, err := security.ValidateJoinTicket(ticket, h.secret)
	if err != nil {
		h.log.Debugw("Rejected websocket ticket", "error", err)
		http.Error(w, "invalid ticket", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.log.Warnw("Websocket upgrade failed", "roomCode", claims.RoomCode, "error", err)
		return
	}

	c := newClient(r.Context(), conn, claims.RoomCode, claims.PlayerID, h.opts.SendBuffer, h.log)
	h.hub.register(c)
	h.setConnected(claims.PlayerID, true)
	h.log.Infow("Player connected", "roomCode", claims.RoomCode, "playerId", claims.PlayerID)

	defer func() {
		if h.hub.unregister(c) {
			h.setConnected(claims.PlayerID, false)
		}
		h.log.Infow("Player disconnected", "roomCode", claims.RoomCode, "playerId", claims.PlayerID)
	}()

	go c.writePump(h.opts.PingInterval)
	c.readPump(func(ctx context.Context) ([]byte, error) {
		return h.syncFrame(ctx, claims.RoomCode)
	})
}

func (h *Handler) syncFrame(ctx context.Context, roomCode string) ([]byte, error) {
	state, err := h.presence.GameState(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Channel: channelSync, Event: body})
}

func (h *Handler) setConnected(playerID uint, connected bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.presence.SetConnected(ctx, playerID, connected); err != nil {
		h.log.Warnw("Failed to update presence", "playerId", playerID, "connected", connected, "error", err)
	}
}
