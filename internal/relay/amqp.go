// Package relay holds the durable paths events can take besides the direct
// fast path: a RabbitMQ fanout shared by every server instance and a local
// Badger journal.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// AMQPRelay publishes every message to a durable fanout exchange. Each
// instance consumes through its own exclusive queue, so every instance sees
// every event once.
type AMQPRelay struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	sub      *amqp.Channel
	exchange string
	queue    string
	log      *zap.SugaredLogger
}

func DialAMQP(url, exchange string) (*AMQPRelay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	r := &AMQPRelay{conn: conn, exchange: exchange, log: logger.Named("relay.amqp")}
	if err := r.setup(); err != nil {
		conn.Close()
		return nil, err
	}
	r.log.Infow("Connected to RabbitMQ", "exchange", exchange, "queue", r.queue)
	return r, nil
}

func (r *AMQPRelay) setup() error {
	pub, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	r.pub = pub

	err = pub.ExchangeDeclare(
		r.exchange, // name
		"fanout",   // kind
		true,       // durable
		false,      // delete when unused
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	sub, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	r.sub = sub

	q, err := sub.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	r.queue = q.Name

	if err := sub.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (r *AMQPRelay) Forward(ctx context.Context, msg distributor.Message) error {
	publishing, err := publishingFor(msg, time.Now())
	if err != nil {
		return err
	}
	return r.pub.PublishWithContext(ctx,
		r.exchange,
		"",
		false,
		false,
		publishing,
	)
}

func (r *AMQPRelay) Subscribe(ctx context.Context, handle func(distributor.Message)) error {
	deliveries, err := r.sub.Consume(
		r.queue, // queue
		"",      // consumer
		true,    // auto-ack
		true,    // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			msg, err := messageFrom(d.Body)
			if err != nil {
				r.log.Warnw("Dropping undecodable delivery", "messageId", d.MessageId, "error", err)
				continue
			}
			handle(msg)
		}
	}
}

func (r *AMQPRelay) Close() error {
	if r.sub != nil {
		r.sub.Close()
	}
	if r.pub != nil {
		r.pub.Close()
	}
	return r.conn.Close()
}

func publishingFor(msg distributor.Message, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode message: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentTypeJSON,
		MessageId:    msg.EventID,
		Type:         string(msg.EventType),
		Timestamp:    now,
		Body:         body,
	}, nil
}

func messageFrom(body []byte) (distributor.Message, error) {
	var msg distributor.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return distributor.Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.EventID == "" {
		return distributor.Message{}, fmt.Errorf("message has no event id")
	}
	return msg, nil
}
