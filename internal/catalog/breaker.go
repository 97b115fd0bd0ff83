package catalog

import (
	"context"
	"errors"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerCatalog guards a Catalog with a circuit breaker. A missing product is
// a successful lookup as far as the breaker is concerned.
type BreakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[*domain.Product]
}

func NewBreakerCatalog(next Catalog, cfg circuitbreaker.Config, log *zap.Logger) *BreakerCatalog {
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrProductNotFound)
	}
	return &BreakerCatalog{
		next: next,
		cb:   circuitbreaker.New[*domain.Product](cfg, log),
	}
}

func (b *BreakerCatalog) GetProduct(ctx context.Context, ref domain.ProductRef) (*domain.Product, error) {
	return b.cb.Execute(func() (*domain.Product, error) {
		return b.next.GetProduct(ctx, ref)
	})
}
