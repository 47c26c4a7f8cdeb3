package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/leonardcser/storefront/internal/logger"
)

// Bus is a RabbitMQ connection with one channel shared by publishing and
// consuming.
type Bus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex // amqp channels are not safe for concurrent publishes
}

// Dial connects and declares the exchange.
func Dial(url, name string) (*Bus, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": name},
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange: %w", err)
	}
	return &Bus{conn: conn, ch: ch}, nil
}

func (b *Bus) Publish(ctx context.Context, ev ProductEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	b.mu.Lock()
	err = b.ch.PublishWithContext(ctx, Exchange, ev.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    ev.EventID,
		Timestamp:    ev.OccurredAt,
		DeliveryMode: amqp.Transient,
		Body:         body,
	})
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.RoutingKey(), err)
	}
	logger.L().Debug().Str("routing_key", ev.RoutingKey()).Int64("product_id", ev.ProductID).Msg("event published")
	return nil
}

// Consume binds an exclusive queue to product.# and invalidates inv for
// every delivery until ctx ends or the channel closes.
func (b *Bus) Consume(ctx context.Context, inv Invalidator) error {
	q, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(q.Name, "product.#", Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := b.ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	closed := b.ch.NotifyClose(make(chan *amqp.Error, 1))

	logger.Infof("consuming %s on queue %s", Exchange, q.Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			if err != nil {
				return fmt.Errorf("rabbitmq channel closed: %w", err)
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			ev, err := Apply(d.Body, inv)
			if err != nil {
				logger.Warnf("drop delivery: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			logger.L().Debug().Str("event_id", ev.EventID).Int64("product_id", ev.ProductID).Msg("cache invalidated")
			if err := d.Ack(false); err != nil {
				logger.Warnf("ack: %v", err)
			}
		}
	}
}

func (b *Bus) Close() error {
	_ = b.ch.Close()
	return b.conn.Close()
}
