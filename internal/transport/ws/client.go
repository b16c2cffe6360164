package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	maxReadBytes = 4096
)

// inbound is the only message shape clients send.
type inbound struct {
	Type string `json:"type"`
}

const inboundSync = "sync"

// Client is one websocket connection with its own write goroutine.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	roomCode string
	playerID uint
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	closeMu sync.Mutex
	closed  bool
}

func newClient(ctx context.Context, conn *websocket.Conn, roomCode string, playerID uint, buffer int, log *zap.SugaredLogger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:     conn,
		send:     make(chan []byte, buffer),
		roomCode: roomCode,
		playerID: playerID,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Send queues a frame. A client whose buffer is full is too slow to keep
// up and gets disconnected.
func (c *Client) Send(frame []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warnw("Send buffer full, closing slow client", "roomCode", c.roomCode, "playerId", c.playerID)
		go c.Close()
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.log.Debugw("Write failed", "roomCode", c.roomCode, "playerId", c.playerID, "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.Debugw("Ping failed", "roomCode", c.roomCode, "playerId", c.playerID, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump blocks until the connection closes, answering sync requests
// through onSync.
func (c *Client) readPump(onSync func(ctx context.Context) ([]byte, error)) {
	defer c.Close()
	c.conn.SetReadLimit(maxReadBytes)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				c.log.Debugw("Read failed", "roomCode", c.roomCode, "playerId", c.playerID, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != inboundSync {
			continue
		}
		frame, err := onSync(c.ctx)
		if err != nil {
			c.log.Warnw("Failed to build state sync", "roomCode", c.roomCode, "error", err)
			continue
		}
		c.Send(frame)
	}
}
