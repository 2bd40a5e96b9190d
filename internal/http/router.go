package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
}

// NewRouter assembles the public HTTP surface. The webhook route sits outside
// the auth middleware: EuPago authenticates with its API key, not a bearer
// token.
func NewRouter(cfg RouterConfig, checkout *CheckoutHandler, orders *OrdersHandler, carts *CartHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware(cfg.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/items", carts.AddItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/{method}", checkout.CreateOrder)
			r.Post("/{method}/confirm", checkout.Confirm)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/eupago", checkout.EuPagoWebhook)
			r.Get("/eupago", checkout.EuPagoWebhook)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Get("/{order_id}", orders.GetOrder)
		})

		r.Patch("/admin/orders/{order_id}/status", orders.UpdateStatus)

		r.Get("/shipping/options", ShippingOptions)
	})

	return otelhttp.NewHandler(r, "storefront-api")
}
