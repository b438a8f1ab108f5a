package event

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgkafka "github.com/chygoz/storefront/pkg/kafka"
)

// EventsExchange is the durable topic exchange cart events are published to.
// Routing keys equal the Kafka topic names.
const EventsExchange = "storefront.events"

const rabbitPublishTimeout = 3 * time.Second

// amqpChannel is the part of *amqp.Channel the transport uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQTransport publishes event envelopes to EventsExchange.
type RabbitMQTransport struct {
	conn *amqp.Connection
	ch   amqpChannel
}

// DialRabbitMQ connects to url, opens a channel and declares EventsExchange.
func DialRabbitMQ(url string) (*RabbitMQTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	t, err := newRabbitMQTransport(ch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	t.conn = conn
	return t, nil
}

func newRabbitMQTransport(ch amqpChannel) (*RabbitMQTransport, error) {
	if err := ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}
	return &RabbitMQTransport{ch: ch}, nil
}

// Publish sends event as a persistent JSON message routed by topic.
func (t *RabbitMQTransport) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, rabbitPublishTimeout)
	defer cancel()

	err = t.ch.PublishWithContext(pubCtx, EventsExchange, topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.EventID,
		CorrelationId: event.CorrelationID,
		Timestamp:     event.Timestamp,
		Type:          event.EventType,
		AppId:         event.Source,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", EventsExchange, topic, err)
	}
	return nil
}

// Ping reports whether the connection is still open.
func (t *RabbitMQTransport) Ping(context.Context) error {
	if t.conn != nil && t.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

// Close closes the channel and the connection.
func (t *RabbitMQTransport) Close() error {
	err := t.ch.Close()
	if t.conn != nil {
		if cerr := t.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
