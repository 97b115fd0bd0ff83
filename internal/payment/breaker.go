package payment

import (
	"context"

	"github.com/Humancodes/mystore/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerProcessor stops calling a failing processor for a while. Declines
// are successful calls; only transport and processor errors count.
type BreakerProcessor struct {
	next    Processor
	create  *gobreaker.CircuitBreaker[string]
	confirm *gobreaker.CircuitBreaker[IntentOutcome]
}

func NewBreakerProcessor(next Processor, cfg circuitbreaker.Config, log *zap.Logger) *BreakerProcessor {
	createCfg, confirmCfg := cfg, cfg
	createCfg.Name = cfg.Name + "-create"
	confirmCfg.Name = cfg.Name + "-confirm"
	return &BreakerProcessor{
		next:    next,
		create:  circuitbreaker.New[string](createCfg, log),
		confirm: circuitbreaker.New[IntentOutcome](confirmCfg, log),
	}
}

func (b *BreakerProcessor) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	return b.create.Execute(func() (string, error) {
		return b.next.CreateIntent(ctx, amount, currency)
	})
}

func (b *BreakerProcessor) ConfirmIntent(ctx context.Context, intentRef, token string) (IntentOutcome, error) {
	return b.confirm.Execute(func() (IntentOutcome, error) {
		return b.next.ConfirmIntent(ctx, intentRef, token)
	})
}
