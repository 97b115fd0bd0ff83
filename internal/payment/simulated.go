package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusSource decides simulated outcomes. An empty reason means success.
type StatusSource interface {
	Status() string
}

type RandomStatus struct{}

func (RandomStatus) Status() string {
	return calcStatus(rand.IntN(101))
}

var declineReasons = []string{
	ReasonCardDeclined,
	ReasonInsufficientFunds,
	ReasonExpiredCard,
	ReasonIncorrectCVC,
	ReasonProcessingError,
}

// calcStatus maps n in [0,100] to a 95% success rate with the rest spread
// over the decline reasons.
func calcStatus(n int) string {
	if n < 95 {
		return ""
	}
	idx := n - 95
	if idx == 0 || idx > len(declineReasons) {
		return ReasonProcessingError
	}
	return declineReasons[idx-1]
}

// FixedStatus always reports the same outcome.
type FixedStatus string

func (f FixedStatus) Status() string { return string(f) }

var (
	ErrUnknownIntent   = errors.New("unknown payment intent")
	ErrIntentConfirmed = errors.New("payment intent already confirmed")
	ErrMissingToken    = errors.New("payment token is required")
)

type intent struct {
	amount    decimal.Decimal
	currency  string
	confirmed bool
}

// SimulatedProcessor is an in-process card processor.
type SimulatedProcessor struct {
	status StatusSource

	mu      sync.Mutex
	intents map[string]*intent
}

func NewSimulatedProcessor(status StatusSource) *SimulatedProcessor {
	if status == nil {
		status = RandomStatus{}
	}
	return &SimulatedProcessor{
		status:  status,
		intents: make(map[string]*intent),
	}
}

func (s *SimulatedProcessor) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("intent amount must be positive, got %s", amount)
	}

	ref := "pi_" + uuid.NewString()
	s.mu.Lock()
	s.intents[ref] = &intent{amount: amount, currency: currency}
	s.mu.Unlock()
	return ref, nil
}

func (s *SimulatedProcessor) ConfirmIntent(ctx context.Context, intentRef, token string) (IntentOutcome, error) {
	if err := ctx.Err(); err != nil {
		return IntentOutcome{}, err
	}
	if token == "" {
		return IntentOutcome{}, ErrMissingToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentRef]
	if !ok {
		return IntentOutcome{}, ErrUnknownIntent
	}
	if in.confirmed {
		return IntentOutcome{}, ErrIntentConfirmed
	}

	if reason := s.status.Status(); reason != "" {
		return IntentOutcome{Succeeded: false, DeclineCode: reason}, nil
	}
	in.confirmed = true
	return IntentOutcome{Succeeded: true, ChargeRef: "ch_" + uuid.NewString(), Amount: in.amount}, nil
}

// SimulatedPushRequester approves or rejects after Delay, as decided by its
// status source.
type SimulatedPushRequester struct {
	status StatusSource
	delay  time.Duration
}

func NewSimulatedPushRequester(status StatusSource, delay time.Duration) *SimulatedPushRequester {
	if status == nil {
		status = RandomStatus{}
	}
	return &SimulatedPushRequester{status: status, delay: delay}
}

func (s *SimulatedPushRequester) Await(ctx context.Context, payeeID string, _ Amount) (string, error) {
	t := time.NewTimer(s.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
	}

	if reason := s.status.Status(); reason != "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrPushRejected, reason, payeeID)
	}
	return "upi_" + uuid.NewString(), nil
}
