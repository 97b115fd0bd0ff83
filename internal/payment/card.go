package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// IntentOutcome is the processor's verdict on a confirmed intent.
type IntentOutcome struct {
	Succeeded   bool
	ChargeRef   string
	DeclineCode string
	Amount      decimal.Decimal
}

// Processor is the external card payment collaborator.
type Processor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (string, error)
	ConfirmIntent(ctx context.Context, intentRef, token string) (IntentOutcome, error)
}

// HostedCardForm charges a card captured by the processor's hosted widget.
// Only the widget's opaque token is kept.
type HostedCardForm struct {
	processor Processor
	log       *zap.Logger
}

func NewHostedCardForm(processor Processor, log *zap.Logger) *HostedCardForm {
	if log == nil {
		log = zap.NewNop()
	}
	return &HostedCardForm{processor: processor, log: log}
}

func (h *HostedCardForm) Method() Method { return MethodCard }

func (h *HostedCardForm) CollectDetails(ctx context.Context, in Input, amount Amount) (Selection, error) {
	token := strings.TrimSpace(in.CardToken)
	if token == "" {
		return Selection{}, &DetailsError{Field: "card_token", Message: "is required"}
	}

	intent, err := h.processor.CreateIntent(ctx, amount.Value, amount.Currency)
	if err != nil {
		h.log.Warn("create payment intent failed", zap.Error(err))
		return Selection{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return Selection{
		Method:       MethodCard,
		Display:      "Card",
		IntentRef:    intent,
		Token:        token,
		IntentAmount: amount.Value,
	}, nil
}

// Confirm charges amount. An intent created for a different total is
// replaced by a fresh one first.
func (h *HostedCardForm) Confirm(ctx context.Context, sel Selection, amount Amount) Result {
	if sel.IntentRef == "" {
		return Failed(ReasonMissingIntent)
	}

	intentRef := sel.IntentRef
	if !sel.IntentAmount.Equal(amount.Value) {
		h.log.Info("order total changed since intent was created",
			zap.String("intent", sel.IntentRef),
			zap.String("intent_amount", sel.IntentAmount.StringFixed(2)),
			zap.String("amount", amount.Value.StringFixed(2)))
		ref, err := h.processor.CreateIntent(ctx, amount.Value, amount.Currency)
		if err != nil {
			h.log.Warn("recreate payment intent failed", zap.Error(err))
			return Failed(failureReason(err))
		}
		intentRef = ref
	}

	out, err := h.processor.ConfirmIntent(ctx, intentRef, sel.Token)
	if err != nil {
		h.log.Warn("confirm payment intent failed", zap.String("intent", intentRef), zap.Error(err))
		return Failed(failureReason(err))
	}
	if !out.Succeeded {
		if out.DeclineCode == "" {
			return Failed(ReasonCardDeclined)
		}
		return Failed(out.DeclineCode)
	}
	return Succeeded(out.ChargeRef)
}

func failureReason(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ReasonProviderDown
	}
	return ReasonProcessingError
}
