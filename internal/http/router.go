package http

import (
	"net/http"
	"time"

	"github.com/Humancodes/mystore/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions       *session.Manager
	Products       ProductLister
	Orders         OrderReader
	Quoter         Quoter
	RequestTimeout time.Duration
	Log            *zap.Logger
}

// NewRouter wires the storefront API. The returned handler is traced with
// otelhttp.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sessionHandler := NewSessionHandler(timeout, log)
	cartHandler := NewCartHandler(cfg.Quoter, timeout, log)
	wishlistHandler := NewWishlistHandler(cartHandler, timeout, log)
	checkoutHandler := NewCheckoutHandler(timeout, log)
	ordersHandler := NewOrdersHandler(cfg.Orders, timeout, log)
	productHandler := NewProductHandler(cfg.Products, timeout, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", productHandler.List)
		r.Get("/products/{product_ref}", productHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Sessions))

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_ref}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_ref}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.GetWishlist)
				r.Post("/items", wishlistHandler.AddItem)
				r.Delete("/items/{product_ref}", wishlistHandler.RemoveItem)
				r.Post("/items/{product_ref}/move-to-cart", wishlistHandler.MoveToCart)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Begin)
				r.Get("/", checkoutHandler.Get)
				r.Delete("/", checkoutHandler.Abandon)
				r.Put("/shipping", checkoutHandler.SubmitShipping)
				r.Put("/payment", checkoutHandler.SelectPayment)
				r.Post("/back", checkoutHandler.Back)
				r.Post("/place", checkoutHandler.Place)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
