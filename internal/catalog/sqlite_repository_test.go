package catalog

import (
	"context"
	"testing"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteRepository {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations("./migrations"))
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestListProducts_SeededByMigrations(t *testing.T) {
	repo := setupTestDB(t)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.Equal(t, domain.ProductRef("sku-001"), products[0].Ref)
}

func TestListProducts_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetProduct_ReturnsProduct(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), "sku-003")
	require.NoError(t, err)
	assert.Equal(t, "Merino Wool Beanie", p.Name)
	assert.True(t, decimal.RequireFromString("24.99").Equal(p.Price))
}

func TestGetProduct_Unknown(t *testing.T) {
	repo := setupTestDB(t)

	p, err := repo.GetProduct(context.Background(), "sku-missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, p)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	assert.NoError(t, repo.RunMigrations("./migrations"))
}
