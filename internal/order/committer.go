package order

import (
	"context"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// OrderPlaced is published after an order is recorded.
type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	BuyerID       string          `json:"buyer_id"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PlacedAt      time.Time       `json:"placed_at"`
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error
}

// Request describes a paid order. Items are the lines that were charged;
// Ledger, when set, is emptied once the order is recorded.
type Request struct {
	BuyerID           string
	Items             []domain.LineItem
	Ledger            *domain.Ledger
	ShippingAddress   domain.Address
	PaymentMethod     payment.Method
	ConfirmationToken string
}

type Committer struct {
	store     Store
	publisher Publisher
	pricing   Pricing
	log       *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewCommitter(store Store, publisher Publisher, pricing Pricing, log *zap.Logger) *Committer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Committer{
		store:     store,
		publisher: publisher,
		pricing:   pricing,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (c *Committer) Quote(items []domain.LineItem) Quote {
	return c.pricing.Quote(items)
}

// Commit records the order for req.Items and clears the ledger. Any failure
// here is a *CommitError and the ledger is left intact.
func (c *Committer) Commit(ctx context.Context, req Request) (*domain.Order, error) {
	items := append([]domain.LineItem(nil), req.Items...)
	id := c.newID()
	if len(items) == 0 {
		return nil, &CommitError{OrderID: id, PaymentReference: req.ConfirmationToken, Err: ErrNothingToCommit}
	}

	q := c.pricing.Quote(items)
	status := domain.PaymentStatusPaid
	if req.PaymentMethod == payment.MethodCOD {
		status = domain.PaymentStatusPending
	}

	o := &domain.Order{
		ID:               id,
		BuyerID:          req.BuyerID,
		Items:            items,
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    string(req.PaymentMethod),
		PaymentReference: req.ConfirmationToken,
		PaymentStatus:    status,
		OrderStatus:      domain.OrderStatusPending,
		Subtotal:         q.Subtotal,
		ShippingCost:     q.Shipping,
		Tax:              q.Tax,
		Total:            q.Total,
		Currency:         q.Currency,
		CreatedAt:        c.now().UTC(),
	}

	if err := c.store.CreateOrder(ctx, o); err != nil {
		c.log.Error("order recording failed after payment",
			zap.String("order_id", o.ID),
			zap.String("buyer_id", o.BuyerID),
			zap.String("payment_reference", o.PaymentReference),
			zap.Error(err))
		return nil, &CommitError{OrderID: o.ID, PaymentReference: o.PaymentReference, Err: err}
	}

	if req.Ledger != nil {
		req.Ledger.Clear()
	}
	c.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("buyer_id", o.BuyerID),
		zap.String("total", o.Total.StringFixed(2)))

	c.publish(ctx, o)
	return o, nil
}

func (c *Committer) publish(ctx context.Context, o *domain.Order) {
	if c.publisher == nil {
		return
	}
	evt := OrderPlaced{
		OrderID:       o.ID,
		BuyerID:       o.BuyerID,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: string(o.PaymentStatus),
		ItemCount:     len(o.Items),
		Total:         o.Total,
		Currency:      o.Currency,
		PlacedAt:      o.CreatedAt,
	}
	if err := c.publisher.PublishOrderPlaced(ctx, evt); err != nil {
		c.log.Warn("publish order placed failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
