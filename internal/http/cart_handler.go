package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxQuantity = 99

// Quoter prices ledger lines for display.
type Quoter interface {
	Quote(items []domain.LineItem) order.Quote
}

type CartHandler struct {
	quoter  Quoter
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(quoter Quoter, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		quoter:  quoter,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Quote      order.Quote       `json:"quote"`
}

func (h *CartHandler) cartResponse(s *session.Session) CartResponseDTO {
	items := s.Ledger.Items()
	return CartResponseDTO{
		Items:      items,
		TotalItems: s.Ledger.TotalItems(),
		TotalPrice: s.Ledger.TotalPrice(),
		Quote:      h.quoter.Quote(items),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartResponse(sessionFromContext(r.Context())))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	s := sessionFromContext(r.Context())
	if _, err := s.AddToCart(ctx, domain.ProductRef(req.ProductRef), req.Quantity); err != nil {
		handleError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.cartResponse(s))
}

// PUT /api/v1/cart/items/{product_ref}
// A quantity of zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ref := domain.ProductRef(chi.URLParam(r, "product_ref"))

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	s := sessionFromContext(r.Context())
	if err := s.SetCartQuantity(ref, req.Quantity); err != nil {
		handleError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(s))
}

// DELETE /api/v1/cart/items/{product_ref}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ref := domain.ProductRef(chi.URLParam(r, "product_ref"))

	s := sessionFromContext(r.Context())
	if err := s.RemoveFromCart(ref); err != nil {
		handleError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(s))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if err := s.ClearCart(); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(s))
}
