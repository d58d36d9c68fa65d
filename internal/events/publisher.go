package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Dispatcher receives chat events after a state change. Delivery is
// best-effort; implementations must never fail the originating request.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: writer, log: log}
}

func (p *Publisher) Dispatch(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Warnw("encode chat event", "type", event.Type, "error", err)
		return
	}

	message := kafka.Message{
		Key:   []byte(event.ConversationID),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.log.Warnw("publish chat event", "type", event.Type, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Fanout forwards each event to every registered dispatcher in order.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, event Event) {
	for _, dispatcher := range f {
		dispatcher.Dispatch(ctx, event)
	}
}
