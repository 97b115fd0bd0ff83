package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SessionHandler struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewSessionHandler(timeout time.Duration, log *zap.Logger) *SessionHandler {
	return &SessionHandler{timeout: timeout, log: log}
}

type LoginRequestDTO struct {
	UserID string `json:"user_id"`
}

type SessionResponseDTO struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id,omitempty"`
	CartItems     int    `json:"cart_items"`
	WishlistItems int    `json:"wishlist_items"`
}

// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	respondJSON(w, http.StatusOK, SessionResponseDTO{
		SessionID:     s.ID,
		UserID:        s.UserID(),
		CartItems:     s.Ledger.TotalItems(),
		WishlistItems: s.Wishlist.Len(),
	})
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	s := sessionFromContext(r.Context())
	if err := s.Login(ctx, req.UserID); err != nil {
		handleError(w, h.log, err)
		return
	}

	h.GetSession(w, r)
}

// POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := sessionFromContext(r.Context()).Logout(ctx); err != nil {
		handleError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
