package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/checkout"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/payment"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewCheckoutHandler(timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout, log: log}
}

type SelectPaymentRequestDTO struct {
	Method    string `json:"method"`
	PayeeID   string `json:"payee_id,omitempty"`
	CardToken string `json:"card_token,omitempty"`
}

type PlaceOrderResponseDTO struct {
	Order    *domain.Order    `json:"order"`
	Checkout checkout.Context `json:"checkout"`
}

// withCheckout runs fn against the session's current checkout.
func (h *CheckoutHandler) withCheckout(w http.ResponseWriter, r *http.Request, fn func(m *checkout.Machine) error) {
	m, err := sessionFromContext(r.Context()).Checkout()
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if err := fn(m); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, m.State())
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	m, err := sessionFromContext(r.Context()).BeginCheckout()
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, m.State())
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withCheckout(w, r, func(*checkout.Machine) error { return nil })
}

// PUT /api/v1/checkout/shipping
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var addr domain.Address
	if !decodeJSON(w, r, &addr) {
		return
	}
	h.withCheckout(w, r, func(m *checkout.Machine) error {
		return m.SubmitShipping(addr)
	})
}

// PUT /api/v1/checkout/payment
func (h *CheckoutHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withCheckout(w, r, func(m *checkout.Machine) error {
		return m.SelectPayment(ctx, payment.Method(req.Method), payment.Input{
			PayeeID:   req.PayeeID,
			CardToken: req.CardToken,
		})
	})
}

// POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.withCheckout(w, r, func(m *checkout.Machine) error {
		return m.Back()
	})
}

// POST /api/v1/checkout/place
// Confirmation may wait on the buyer (push payments), so it runs on the
// request context without the handler timeout. A paid order is recorded even
// if the client goes away.
func (h *CheckoutHandler) Place(w http.ResponseWriter, r *http.Request) {
	m, err := sessionFromContext(r.Context()).Checkout()
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	o, err := m.PlaceOrder(r.Context())
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{Order: o, Checkout: m.State()})
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := sessionFromContext(r.Context()).AbandonCheckout(); err != nil {
		handleError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
