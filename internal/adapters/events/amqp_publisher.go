package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"logiflow-service/internal/domain"
)

const (
	ExchangeName = "ex.deliveries"
	QueueName    = "q.fleet.deliveries"
	DLQName      = "q.fleet.deliveries.dlq"
	DLXName      = "ex.deliveries.dlx"
	BindingKey   = "delivery.#"
	RouteBinding = "route.#"
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends delivery events to a topic exchange. The routing key is
// the event type, so fleet consumers can bind to "delivery.delivered" alone.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   amqpChannel
}

// DialAMQP connects to RabbitMQ and declares the fleet topology.
func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := newAMQPPublisher(ch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel) (*AMQPPublisher, error) {
	if err := setupTopology(ch); err != nil {
		return nil, fmt.Errorf("declare rabbitmq topology: %w", err)
	}
	return &AMQPPublisher{ch: ch}, nil
}

func setupTopology(ch amqpChannel) error {
	if err := ch.ExchangeDeclare(DLXName, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DLQName, "", DLXName, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange": DLXName,
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return err
	}
	for _, key := range []string{BindingKey, RouteBinding} {
		if err := ch.QueueBind(QueueName, key, ExchangeName, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev domain.DeliveryEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		string(ev.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s to rabbitmq: %w", ev.Type, err)
	}

	slog.Debug("event published", "backend", "amqp", "type", ev.Type, "record_id", ev.RecordID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
