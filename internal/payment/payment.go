package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCOD  Method = "cod"
	MethodUPI  Method = "upi"
	MethodCard Method = "card"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Failure reasons reported in Result.Reason.
const (
	ReasonCardDeclined      = "card_declined"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonExpiredCard       = "expired_card"
	ReasonIncorrectCVC      = "incorrect_cvc"
	ReasonProcessingError   = "processing_error"
	ReasonProviderDown      = "provider_unavailable"
	ReasonMissingIntent     = "missing_payment_intent"
	ReasonPaymentTimeout    = "payment_timeout"
	ReasonPaymentRejected   = "payment_rejected"
)

var (
	ErrUnknownMethod       = errors.New("unknown payment method")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// DetailsError reports payment input that failed validation.
type DetailsError struct {
	Field   string
	Message string
}

func (e *DetailsError) Error() string {
	return fmt.Sprintf("invalid payment details: %s %s", e.Field, e.Message)
}

type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// Result is the only thing checkout sees of a confirmation.
type Result struct {
	Outcome           Outcome `json:"outcome"`
	ConfirmationToken string  `json:"confirmation_token,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

func Succeeded(token string) Result {
	return Result{Outcome: OutcomeSuccess, ConfirmationToken: token}
}

func Failed(reason string) Result {
	return Result{Outcome: OutcomeFailure, Reason: reason}
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Input is what the buyer submits for a method. CardToken comes from the
// hosted card widget; raw card data never reaches this package.
type Input struct {
	PayeeID   string `json:"payee_id,omitempty"`
	CardToken string `json:"card_token,omitempty"`
}

// Selection is the collected payment choice kept on the checkout.
type Selection struct {
	Method    Method `json:"method"`
	PayeeID   string `json:"-"`
	Display   string `json:"display,omitempty"`
	IntentRef string `json:"intent_ref,omitempty"`
	Token     string `json:"-"`

	// IntentAmount is what IntentRef was created for.
	IntentAmount decimal.Decimal `json:"-"`
}

type Strategy interface {
	Method() Method
	// CollectDetails validates input and prepares whatever Confirm needs.
	CollectDetails(ctx context.Context, in Input, amount Amount) (Selection, error)
	// Confirm never returns collaborator errors; they become failed Results.
	Confirm(ctx context.Context, sel Selection, amount Amount) Result
}

type Registry struct {
	strategies map[Method]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[Method]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Method()] = s
	}
	return r
}

func (r *Registry) Get(m Method) (Strategy, error) {
	s, ok := r.strategies[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, m)
	}
	return s, nil
}

func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.strategies))
	for m := range r.strategies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
