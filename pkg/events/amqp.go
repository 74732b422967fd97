package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, payload interface{}) error
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes JSON messages to a durable queue on the default exchange.
type AMQPPublisher struct {
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(url, queue string, timeout time.Duration, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	publisher := newPublisher(ch, queue, timeout, logger)
	publisher.conn = conn
	return publisher, nil
}

func newPublisher(ch channel, queue string, timeout time.Duration, logger *zap.Logger) *AMQPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{ch: ch, queue: queue, timeout: timeout, logger: logger}
}

// Publish marshals payload and sends it as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	p.logger.Debug("event published", zap.String("queue", p.queue), zap.Int("bytes", len(body)))
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogPublisher logs events instead of sending them. It stands in when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, payload interface{}) error {
	p.logger.Info("event dropped, publisher disabled", zap.Any("payload", payload))
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }
