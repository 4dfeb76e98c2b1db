package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBus publishes events to a durable RabbitMQ queue and consumes them back into a handler, so
// several API instances can share one notification worker pool. Publish only enqueues locally.
type AMQPBus struct {
	url     string
	queue   string
	out     chan Event
	handler Handler
	log     *zap.Logger
}

func NewAMQPBus(url, queue string, buffer int, handler Handler, log *zap.Logger) *AMQPBus {
	if buffer < 1 {
		buffer = 1
	}
	return &AMQPBus{url: url, queue: queue, out: make(chan Event, buffer), handler: handler, log: log.Named("amqp")}
}

func (b *AMQPBus) Publish(_ context.Context, e Event) {
	select {
	case b.out <- e:
	default:
		b.log.Warn("publish buffer full, dropping event", zap.String("type", e.Type), zap.String("event_id", e.ID))
	}
}

// Run starts the publisher and consumer loops and blocks until ctx is cancelled.
func (b *AMQPBus) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.reconnectLoop(ctx, "publisher", b.publishLoop)
		close(done)
	}()
	b.reconnectLoop(ctx, "consumer", b.consumeLoop)
	<-done
}

func (b *AMQPBus) reconnectLoop(ctx context.Context, name string, loop func(context.Context, *amqp.Connection) error) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			b.log.Warn("dial broker failed", zap.String("loop", name), zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		err = loop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		b.log.Warn("loop ended, reconnecting", zap.String("loop", name), zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (b *AMQPBus) declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(b.queue, true, false, false, false, nil)
	return err
}

func (b *AMQPBus) publishLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()
	if err := b.declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			return fmt.Errorf("connection closed: %v", err)
		case e := <-b.out:
			body, err := json.Marshal(e)
			if err != nil {
				b.log.Error("marshal event", zap.String("type", e.Type), zap.Error(err))
				continue
			}
			pub := amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    e.ID,
				Type:         e.Type,
				Timestamp:    e.OccurredAt,
				Body:         body,
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = ch.PublishWithContext(pctx, "", b.queue, false, false, pub)
			cancel()
			if err != nil {
				b.log.Warn("publish failed", zap.String("type", e.Type), zap.String("event_id", e.ID), zap.Error(err))
				return err
			}
		}
	}
}

func (b *AMQPBus) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()
	if err := ch.Qos(20, 0, false); err != nil {
		b.log.Warn("set QoS failed", zap.Error(err))
	}
	if err := b.declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				b.log.Warn("bad event payload", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			if err := b.handler(ctx, e); err != nil {
				b.log.Warn("event handler failed", zap.String("type", e.Type), zap.String("event_id", e.ID), zap.Error(err))
			}
			// Notifications are best-effort; a failed handler is not redelivered.
			_ = d.Ack(false)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
