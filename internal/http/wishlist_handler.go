package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WishlistHandler struct {
	cart    *CartHandler
	timeout time.Duration
	log     *zap.Logger
}

func NewWishlistHandler(cart *CartHandler, timeout time.Duration, log *zap.Logger) *WishlistHandler {
	return &WishlistHandler{cart: cart, timeout: timeout, log: log}
}

type AddWishlistItemRequestDTO struct {
	ProductRef string `json:"product_ref"`
}

type WishlistResponseDTO struct {
	Items []domain.WishlistEntry `json:"items"`
}

func wishlistResponse(s *session.Session) WishlistResponseDTO {
	return WishlistResponseDTO{Items: s.Wishlist.Items()}
}

// GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, wishlistResponse(sessionFromContext(r.Context())))
}

// POST /api/v1/wishlist/items
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddWishlistItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref is required")
		return
	}

	s := sessionFromContext(r.Context())
	added, err := s.AddToWishlist(ctx, domain.ProductRef(req.ProductRef))
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respondJSON(w, status, wishlistResponse(s))
}

// DELETE /api/v1/wishlist/items/{product_ref}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if err := s.RemoveFromWishlist(domain.ProductRef(chi.URLParam(r, "product_ref"))); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wishlistResponse(s))
}

// POST /api/v1/wishlist/items/{product_ref}/move-to-cart
func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if err := s.MoveToCart(ctx, domain.ProductRef(chi.URLParam(r, "product_ref"))); err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.cartResponse(s))
}
