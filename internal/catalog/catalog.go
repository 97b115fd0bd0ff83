package catalog

import (
	"context"
	"errors"

	"github.com/Humancodes/mystore/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog resolves product refs to current product details.
type Catalog interface {
	GetProduct(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
}
