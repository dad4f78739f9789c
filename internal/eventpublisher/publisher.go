// Package eventpublisher publishes ledger events to RabbitMQ.
package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-petr/fund-transfer/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// RoutingKeyTransferCompleted is the routing key of domain.TransferCompleted events.
const RoutingKeyTransferCompleted = "transfer.completed"

// Channel is the part of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends events to a topic exchange.
type Publisher struct {
	channel  Channel
	exchange string
}

// New returns Publisher writing to the exchange through the channel.
func New(ch Channel, exchange string) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
	}
}

// Dial connects to the broker, declares the exchange and returns a Publisher on it.
//
// The returned close function closes the channel and the connection.
func Dial(url, exchange string) (*Publisher, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "fund-transfer",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	closeFn := func() error {
		if err := ch.Close(); err != nil {
			_ = conn.Close()
			return err
		}

		return conn.Close()
	}

	return New(ch, exchange), closeFn, nil
}

// TransferCompleted publishes the event of a committed transfer.
func (p *Publisher) TransferCompleted(ctx context.Context, event domain.TransferCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,                  // exchange
		RoutingKeyTransferCompleted, // routing key
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ReferenceCode,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyTransferCompleted, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("routing_key", RoutingKeyTransferCompleted).
		Str("reference_code", event.ReferenceCode).
		Msg("event published")

	return nil
}

// Nop drops every event.
type Nop struct{}

// TransferCompleted does nothing.
func (Nop) TransferCompleted(context.Context, domain.TransferCompleted) error {
	return nil
}
