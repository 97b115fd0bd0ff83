package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/repository"
	"github.com/Humancodes/mystore/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := sessionFromContext(r.Context()).UserID()
	if userID == "" {
		handleError(w, h.log, session.ErrNotAuthenticated)
		return
	}

	orders, err := h.orders.ListOrdersByBuyer(ctx, userID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if orders == nil {
		orders = make([]*domain.Order, 0)
	}

	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := sessionFromContext(r.Context()).UserID()
	if userID == "" {
		handleError(w, h.log, session.ErrNotAuthenticated)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	o, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	// other buyers' orders look the same as missing ones
	if o.BuyerID != userID {
		handleError(w, h.log, repository.ErrOrderNotFound)
		return
	}

	respondJSON(w, http.StatusOK, o)
}
