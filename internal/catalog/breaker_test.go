package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockCatalog) GetProduct(_ context.Context, ref domain.ProductRef) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{Ref: ref, Name: "Thing"}, nil
}

func testBreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("catalog-test")
	cfg.ConsecutiveFailures = 2
	cfg.OpenTimeout = time.Minute
	return cfg
}

func TestBreakerCatalog_PassesThrough(t *testing.T) {
	sut := NewBreakerCatalog(&mockCatalog{}, testBreakerConfig(), nil)

	p, err := sut.GetProduct(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductRef("sku-1"), p.Ref)
}

func TestBreakerCatalog_NotFoundDoesNotTrip(t *testing.T) {
	inner := &mockCatalog{err: ErrProductNotFound}
	sut := NewBreakerCatalog(inner, testBreakerConfig(), nil)

	for i := 0; i < 5; i++ {
		_, err := sut.GetProduct(context.Background(), "sku-1")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, 5, inner.calls)
}

func TestBreakerCatalog_OpensOnFailures(t *testing.T) {
	inner := &mockCatalog{err: errors.New("db locked")}
	sut := NewBreakerCatalog(inner, testBreakerConfig(), nil)

	for i := 0; i < 2; i++ {
		_, err := sut.GetProduct(context.Background(), "sku-1")
		assert.ErrorContains(t, err, "db locked")
	}

	_, err := sut.GetProduct(context.Background(), "sku-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}
