package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"github.com/samber/lo"
)

// EventLog replays the journaled events of a room in publication order.
type EventLog interface {
	Replay(roomCode string) ([]distributor.Message, error)
}

type EventRecord struct {
	EventID   string          `json:"eventId"`
	EventType events.Type     `json:"eventType"`
	Channel   events.Channel  `json:"channel"`
	Event     json.RawMessage `json:"event"`
}

type EventHandler struct {
	log EventLog
}

func NewEventHandler(log EventLog) *EventHandler {
	return &EventHandler{log: log}
}

// History returns the room's public events. Private score updates are
// never replayed.
func (h *EventHandler) History(c *gin.Context) {
	msgs, err := h.log.Replay(roomCode(c))
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeInternalError, "failed to read event journal"))
		return
	}

	public := lo.Reject(msgs, func(m distributor.Message, _ int) bool { return m.IsPrivate() })
	c.JSON(http.StatusOK, gin.H{
		"roomCode": roomCode(c),
		"events": lo.Map(public, func(m distributor.Message, _ int) EventRecord {
			return EventRecord{EventID: m.EventID, EventType: m.EventType, Channel: m.Channel, Event: m.Payload}
		}),
	})
}
