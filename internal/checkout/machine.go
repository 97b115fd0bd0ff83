package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/payment"
	"go.uber.org/zap"
)

// Committer records a paid order.
type Committer interface {
	Quote(items []domain.LineItem) order.Quote
	Commit(ctx context.Context, req order.Request) (*domain.Order, error)
}

// Context is a snapshot of a checkout's progress.
type Context struct {
	Step                     Step               `json:"step"`
	ShippingAddress          *domain.Address    `json:"shipping_address,omitempty"`
	Payment                  *payment.Selection `json:"payment,omitempty"`
	PaymentConfirmationToken string             `json:"payment_confirmation_token,omitempty"`
	OrderID                  string             `json:"order_id,omitempty"`
	LastError                string             `json:"last_error,omitempty"`
	Quote                    order.Quote        `json:"quote"`
}

// Machine walks one buyer through shipping, payment and review to a placed
// order. Transitions are atomic; confirmation and commit run unlocked while
// the step is processing and the placed latch is held.
type Machine struct {
	buyerID   string
	ledger    *domain.Ledger
	registry  *payment.Registry
	committer Committer
	log       *zap.Logger

	mu     sync.Mutex
	state  Context
	placed bool
}

func New(buyerID string, ledger *domain.Ledger, registry *payment.Registry, committer Committer, log *zap.Logger) (*Machine, error) {
	if ledger.Len() == 0 {
		return nil, ErrEmptyCart
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		buyerID:   buyerID,
		ledger:    ledger,
		registry:  registry,
		committer: committer,
		log:       log.With(zap.String("buyer_id", buyerID)),
		state:     Context{Step: StepShipping},
	}, nil
}

func (m *Machine) State() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Context {
	c := m.state
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		c.ShippingAddress = &addr
	}
	if c.Payment != nil {
		sel := *c.Payment
		c.Payment = &sel
	}
	c.Quote = m.committer.Quote(m.ledger.Items())
	return c
}

// SubmitShipping validates addr and moves to payment. An invalid address keeps
// the checkout at shipping.
func (m *Machine) SubmitShipping(addr domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step != StepShipping {
		return transitionError(m.state.Step, StepPayment)
	}
	if errs := addr.Validate(); errs != nil {
		verr := &ValidationError{Fields: errs}
		m.state.LastError = verr.Error()
		return verr
	}

	if err := m.moveLocked(StepPayment); err != nil {
		return err
	}
	m.state.ShippingAddress = &addr
	m.state.LastError = ""
	return nil
}

// SelectPayment collects details for method and moves to review.
func (m *Machine) SelectPayment(ctx context.Context, method payment.Method, in payment.Input) error {
	m.mu.Lock()
	if step := m.state.Step; step != StepPayment {
		m.mu.Unlock()
		return transitionError(step, StepReview)
	}
	if m.state.ShippingAddress == nil {
		m.mu.Unlock()
		return &ValidationError{Fields: map[string]string{"shipping_address": "is required"}}
	}
	m.mu.Unlock()

	strategy, err := m.registry.Get(method)
	if err != nil {
		return &ValidationError{Fields: map[string]string{"method": "is not supported"}}
	}

	sel, err := strategy.CollectDetails(ctx, in, m.amountOf(m.ledger.Items()))
	if err != nil {
		var de *payment.DetailsError
		if errors.As(err, &de) {
			verr := &ValidationError{Fields: map[string]string{de.Field: de.Message}}
			m.setLastError(verr.Error())
			return verr
		}
		m.setLastError(err.Error())
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// the buyer may have navigated away while details were collected
	if m.state.Step != StepPayment {
		return transitionError(m.state.Step, StepReview)
	}
	if err := m.moveLocked(StepReview); err != nil {
		return err
	}
	m.state.Payment = &sel
	m.state.LastError = ""
	return nil
}

// Back moves one step towards shipping. It is refused once processing started.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var to Step
	switch m.state.Step {
	case StepPayment:
		to = StepShipping
	case StepReview:
		to = StepPayment
	default:
		return transitionError(m.state.Step, "back")
	}
	if err := m.moveLocked(to); err != nil {
		return err
	}
	m.state.LastError = ""
	return nil
}

// Guard runs fn unless the checkout is processing, in which case it returns
// ErrInProgress. Cart edits go through here so the lines being paid for stay
// put until the order is recorded or the payment fails.
func (m *Machine) Guard(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Step == StepProcessing {
		return ErrInProgress
	}
	return fn()
}

// PlaceOrder confirms the selected payment and records the order. The cart
// lines are frozen when processing starts; the same lines are charged and
// recorded. Only one call can be in flight; concurrent calls get
// ErrAlreadyPlaced. A failed payment returns *PaymentError and leaves the
// checkout at review. A payment that succeeded but could not be recorded
// returns *order.CommitError and the checkout stops at needs_reconciliation.
//
// Once the payment succeeded the order is written even if ctx is cancelled.
func (m *Machine) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	m.mu.Lock()
	if m.placed {
		m.mu.Unlock()
		return nil, ErrAlreadyPlaced
	}
	items := m.ledger.Items()
	if m.state.Step == StepReview && len(items) == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if err := m.moveLocked(StepProcessing); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.placed = true
	m.state.LastError = ""
	sel := *m.state.Payment
	addr := *m.state.ShippingAddress
	m.mu.Unlock()

	strategy, err := m.registry.Get(sel.Method)
	if err != nil {
		return nil, m.paymentFailed(payment.ReasonProcessingError)
	}

	res := strategy.Confirm(ctx, sel, m.amountOf(items))
	if !res.OK() {
		m.log.Info("payment failed", zap.String("method", string(sel.Method)), zap.String("reason", res.Reason))
		return nil, m.paymentFailed(res.Reason)
	}

	m.mu.Lock()
	m.state.PaymentConfirmationToken = res.ConfirmationToken
	m.mu.Unlock()

	o, err := m.committer.Commit(context.WithoutCancel(ctx), order.Request{
		BuyerID:           m.buyerID,
		Items:             items,
		Ledger:            m.ledger,
		ShippingAddress:   addr,
		PaymentMethod:     sel.Method,
		ConfirmationToken: res.ConfirmationToken,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// latch stays set: retrying could charge twice
		_ = m.moveLocked(StepNeedsReconciliation)
		m.state.LastError = err.Error()
		var ce *order.CommitError
		if !errors.As(err, &ce) {
			err = &order.CommitError{PaymentReference: res.ConfirmationToken, Err: err}
		}
		return nil, err
	}
	_ = m.moveLocked(StepComplete)
	m.state.OrderID = o.ID
	return o, nil
}

func (m *Machine) paymentFailed(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.moveLocked(StepReview)
	m.state.LastError = reason
	m.placed = false
	return &PaymentError{Reason: reason}
}

func (m *Machine) amountOf(items []domain.LineItem) payment.Amount {
	q := m.committer.Quote(items)
	return payment.Amount{Value: q.Total, Currency: q.Currency}
}

// moveLocked must be called with mu held.
func (m *Machine) moveLocked(to Step) error {
	if !CanTransitionTo(m.state.Step, to) {
		return transitionError(m.state.Step, to)
	}
	m.state.Step = to
	return nil
}

func (m *Machine) setLastError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastError = msg
}
