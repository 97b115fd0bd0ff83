package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Humancodes/mystore/internal/order"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicOrdersPlaced    = "orders-placed"
	EventTypeOrderPlaced = "order.placed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits OrderPlaced events keyed by order id.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(log *zap.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicOrdersPlaced,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, evt order.OrderPlaced) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID), // order id keeps per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order placed event: %w", err)
	}
	p.log.Debug("order placed event published", zap.String("order_id", evt.OrderID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishOrderPlaced(context.Context, order.OrderPlaced) error { return nil }

func (Nop) Close() error { return nil }
