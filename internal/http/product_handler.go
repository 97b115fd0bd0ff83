package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
}

type ProductHandler struct {
	products ProductLister
	timeout  time.Duration
	log      *zap.Logger
}

func NewProductHandler(products ProductLister, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if products == nil {
		products = make([]*domain.Product, 0)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{product_ref}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.GetProduct(ctx, domain.ProductRef(chi.URLParam(r, "product_ref")))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
