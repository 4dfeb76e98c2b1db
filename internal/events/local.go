package events

import (
	"context"

	"go.uber.org/zap"
)

// LocalBus delivers events to a handler on a single worker goroutine. A full buffer drops the event.
type LocalBus struct {
	ch      chan Event
	handler Handler
	log     *zap.Logger
}

func NewLocalBus(buffer int, handler Handler, log *zap.Logger) *LocalBus {
	if buffer < 1 {
		buffer = 1
	}
	return &LocalBus{ch: make(chan Event, buffer), handler: handler, log: log.Named("events")}
}

func (b *LocalBus) Publish(_ context.Context, e Event) {
	select {
	case b.ch <- e:
	default:
		b.log.Warn("event buffer full, dropping event", zap.String("type", e.Type), zap.String("event_id", e.ID))
	}
}

// Run consumes until ctx is cancelled, then drains what is already buffered.
func (b *LocalBus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.ch:
					b.dispatch(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (b *LocalBus) dispatch(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", zap.String("type", e.Type), zap.Any("panic", r))
		}
	}()
	if err := b.handler(ctx, e); err != nil {
		b.log.Warn("event handler failed", zap.String("type", e.Type), zap.String("event_id", e.ID), zap.Error(err))
	}
}
