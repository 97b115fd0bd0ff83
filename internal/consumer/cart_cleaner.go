package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/publisher"
	"github.com/Humancodes/mystore/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	GroupCartCleaner = "storefront-cart-cleaner"

	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartCleaner empties a buyer's stored cart once their order is placed. The
// session normally pushes the empty cart itself; this covers sessions that
// expired or crashed before that push. A cart written after the order was
// placed is left alone.
type CartCleaner struct {
	state  repository.StateGateway
	reader messageReader
	log    *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

func NewCartCleaner(state repository.StateGateway, log *zap.Logger, brokers ...string) *CartCleaner {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.TopicOrdersPlaced,
		GroupID:  GroupCartCleaner,
		MaxBytes: 10e6, // 10MB
	})
	return newCartCleaner(state, reader, log)
}

func newCartCleaner(state repository.StateGateway, reader messageReader, log *zap.Logger) *CartCleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartCleaner{
		state:     state,
		reader:    reader,
		log:       log,
		retryBase: defaultRetryBase,
		retryMax:  defaultRetryMax,
	}
}

// Run consumes until ctx is done.
func (c *CartCleaner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *CartCleaner) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *CartCleaner) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("error reading message", zap.Error(err))
		}
		return
	}

	// a later commit would skip this offset, so it is retried in place
	if !c.handleWithRetry(ctx, m) {
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Warn("error committing message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// handleWithRetry reports false only when ctx ended before m was handled.
func (c *CartCleaner) handleWithRetry(ctx context.Context, m kafka.Message) bool {
	wait := c.retryBase
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("order placed event not handled, retrying",
			zap.Int64("offset", m.Offset), zap.Int("attempt", attempt),
			zap.Duration("backoff", wait), zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		wait = min(wait*2, c.retryMax)
	}
}

func (c *CartCleaner) handle(ctx context.Context, m kafka.Message) error {
	if !isOrderPlaced(m) {
		return nil
	}

	var evt order.OrderPlaced
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		// a malformed event never gets better, skip it
		c.log.Error("error parsing order placed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if evt.BuyerID == "" {
		c.log.Error("order placed event without buyer", zap.String("order_id", evt.OrderID))
		return nil
	}

	snap, err := c.state.Load(ctx, evt.BuyerID, domain.KindCart)
	if err != nil {
		return fmt.Errorf("load cart for %s: %w", evt.BuyerID, err)
	}
	if snap.IsEmpty() {
		return nil
	}
	if snap.LastWriteTimestamp.After(evt.PlacedAt) {
		c.log.Debug("cart changed after order, keeping it",
			zap.String("buyer_id", evt.BuyerID), zap.String("order_id", evt.OrderID))
		return nil
	}

	if err := c.state.Save(ctx, evt.BuyerID, domain.KindCart, []domain.RemoteItem{}); err != nil {
		return fmt.Errorf("clear cart for %s: %w", evt.BuyerID, err)
	}
	c.log.Info("stored cart cleared after order",
		zap.String("buyer_id", evt.BuyerID), zap.String("order_id", evt.OrderID))
	return nil
}

func isOrderPlaced(m kafka.Message) bool {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value) == publisher.EventTypeOrderPlaced
		}
	}
	// untagged messages are treated as order placed
	return true
}
