package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/checkout"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/payment"
	"github.com/Humancodes/mystore/internal/repository"
	"github.com/Humancodes/mystore/internal/session"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

const contactSupportMessage = "Your payment went through but we could not record your order. " +
	"Please do not pay again; contact support and quote the payment reference."

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError maps domain errors to HTTP responses.
func handleError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		verr *checkout.ValidationError
		perr *checkout.PaymentError
		cerr *order.CommitError
	)

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "some fields are invalid",
			Code:    "validation_failed",
			Details: verr.Fields,
		})
	case errors.As(err, &perr):
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   perr.Error(),
			Code:    "payment_failed",
			Details: map[string]any{"reason": perr.Reason, "retryable": perr.Retryable()},
		})
	case errors.As(err, &cerr):
		log.Error("order recording failed", zap.String("order_id", cerr.OrderID),
			zap.String("payment_reference", cerr.PaymentReference), zap.Error(cerr.Err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: contactSupportMessage,
			Code:  "order_recording_failed",
			Details: map[string]string{
				"order_id":          cerr.OrderID,
				"payment_reference": cerr.PaymentReference,
			},
		})
	case errors.Is(err, session.ErrNeedsReconciliation):
		respondError(w, http.StatusConflict, "needs_reconciliation",
			"A previous payment is awaiting reconciliation. Please contact support before ordering again.")
	case errors.Is(err, checkout.ErrAlreadyPlaced):
		respondError(w, http.StatusConflict, "already_placed", err.Error())
	case errors.Is(err, checkout.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, session.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, session.ErrNoCheckout):
		respondError(w, http.StatusNotFound, "no_checkout", err.Error())
	case errors.Is(err, session.ErrNotInCart):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, session.ErrNotInWishlist):
		respondError(w, http.StatusNotFound, "not_in_wishlist", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, payment.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
