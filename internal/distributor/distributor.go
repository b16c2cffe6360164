//go:generate go run go.uber.org/mock/mockgen -source=distributor.go -destination=../mocks/mock_distributor.go -package=mocks
package distributor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

// Message is an encoded event addressed either to a room channel or, for
// the private channel, to a single player.
type Message struct {
	EventID   string          `json:"eventId"`
	EventType events.Type     `json:"eventType"`
	RoomCode  string          `json:"roomCode"`
	Channel   events.Channel  `json:"channel"`
	PlayerID  uint            `json:"playerId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (m Message) IsPrivate() bool {
	return m.Channel == events.ChannelPrivate
}

func (m Message) target() string {
	if m.IsPrivate() {
		return fmt.Sprintf("player:%d", m.PlayerID)
	}
	return fmt.Sprintf("room:%s:%s", m.RoomCode, m.Channel)
}

// Sink delivers messages to one kind of subscriber. Deliver must honour ctx.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Relay carries messages through a durable intermediary so other consumers
// (and other instances) see the same events.
type Relay interface {
	Forward(ctx context.Context, msg Message) error
	// Subscribe blocks, handing every relayed message to handle, until ctx is done.
	Subscribe(ctx context.Context, handle func(Message)) error
	Close() error
}

// Distributor fans events out to every registered sink on the fast path and
// optionally forwards them to a relay. Messages coming back from the relay
// are delivered only if the fast path has not already delivered them.
//
// Delivery never fails the caller: sink and relay errors are logged and dropped.
type Distributor struct {
	mu          sync.RWMutex
	sinks       []Sink
	relay       Relay
	sinkTimeout time.Duration
	seen        *dedupWindow
	log         *zap.SugaredLogger
}

type Option func(*Distributor)

func WithRelay(r Relay) Option {
	return func(d *Distributor) { d.relay = r }
}

func WithSinks(sinks ...Sink) Option {
	return func(d *Distributor) { d.sinks = append(d.sinks, sinks...) }
}

func New(sinkTimeout time.Duration, dedupSize int, opts ...Option) *Distributor {
	d := &Distributor{
		sinkTimeout: sinkTimeout,
		seen:        newDedupWindow(dedupSize),
		log:         logger.Named("distributor"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Distributor) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Publish sends a room-wide event on the event's own channel.
func (d *Distributor) Publish(ctx context.Context, e events.Event) {
	if e.Channel() == events.ChannelPrivate {
		d.log.Warnw("Private event published to a room, dropping", "eventType", e.Meta().EventType)
		return
	}
	d.publish(ctx, e, 0)
}

// PublishToPlayer sends an event on one player's private channel.
func (d *Distributor) PublishToPlayer(ctx context.Context, playerID uint, e events.Event) {
	d.publish(ctx, e, playerID)
}

func (d *Distributor) publish(ctx context.Context, e events.Event, playerID uint) {
	// notifications outlive the request that caused them
	ctx = context.WithoutCancel(ctx)

	msg, err := NewMessage(e, playerID)
	if err != nil {
		d.log.Errorw("Failed to encode event", "eventType", e.Meta().EventType, "error", err)
		return
	}

	d.deliver(ctx, msg)

	if d.relay != nil {
		rctx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		defer cancel()
		if err := d.relay.Forward(rctx, msg); err != nil {
			d.log.Warnw("Failed to forward event to relay", "eventId", msg.EventID, "eventType", msg.EventType, "error", err)
		}
	}
}

// NewMessage encodes e for delivery. A non-zero playerID addresses the
// player's private channel.
func NewMessage(e events.Event, playerID uint) (Message, error) {
	payload, err := events.Encode(e)
	if err != nil {
		return Message{}, err
	}
	meta := e.Meta()
	channel := e.Channel()
	if playerID != 0 {
		channel = events.ChannelPrivate
	}
	return Message{
		EventID:   meta.EventID,
		EventType: meta.EventType,
		RoomCode:  meta.RoomCode,
		Channel:   channel,
		PlayerID:  playerID,
		Payload:   payload,
	}, nil
}

// Run consumes the relay until ctx is cancelled. Without a relay it just waits.
func (d *Distributor) Run(ctx context.Context) error {
	if d.relay == nil {
		<-ctx.Done()
		return nil
	}
	d.log.Infow("Consuming relayed events")
	err := d.relay.Subscribe(ctx, func(msg Message) {
		d.deliver(ctx, msg)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("relay subscription: %w", err)
	}
	return nil
}

// Close releases the relay, if any.
func (d *Distributor) Close() error {
	if d.relay == nil {
		return nil
	}
	return d.relay.Close()
}

func (d *Distributor) deliver(ctx context.Context, msg Message) {
	if !d.seen.add(msg.EventID + "|" + msg.target()) {
		d.log.Debugw("Duplicate event dropped", "eventId", msg.EventID, "eventType", msg.EventType)
		return
	}

	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, sink := range sinks {
		d.deliverTo(ctx, sink, msg)
	}
}

func (d *Distributor) deliverTo(ctx context.Context, sink Sink, msg Message) {
	sctx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("Sink panicked", "sink", sink.Name(), "eventId", msg.EventID, "panic", r)
		}
	}()

	if err := sink.Deliver(sctx, msg); err != nil {
		d.log.Warnw("Sink delivery failed",
			"sink", sink.Name(),
			"eventId", msg.EventID,
			"eventType", msg.EventType,
			"roomCode", msg.RoomCode,
			"error", err,
		)
	}
}
