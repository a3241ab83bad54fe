package handlers

import (
	"net/http"

	"storefront/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router собирает все обработчики сервиса.
type Router struct {
	Coupons     *CouponHandler
	Orders      *OrderHandler
	Reports     *ReportHandler
	Health      *HealthHandler
	RateLimit   *RateLimitHandler
	RateLimiter MiddlewareLimiter
	Log         *logger.Logger
}

// NewRouter строит HTTP маршруты сервиса.
func NewRouter(h Router) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Health check endpoints
	r.Get("/health", h.Health.Health)
	r.Get("/health/readiness", h.Health.Readiness)
	r.Get("/health/liveness", h.Health.Liveness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(h.RateLimiter, h.Log))

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/validate", h.Coupons.Validate)
			r.Post("/redemptions", h.Coupons.RecordRedemption)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", h.Coupons.List)
				r.Post("/", h.Coupons.Create)
				r.Get("/{code}", h.Coupons.Get)
				r.Put("/{code}", h.Coupons.Update)
				r.Delete("/{code}", h.Coupons.Delete)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", h.Orders.GetOrder)
					r.Post("/cancel", h.Orders.CancelOrder)
					r.Post("/refund", h.Orders.RefundOrder)
					r.Post("/return", h.Orders.ReturnOrder)
					r.Get("/history", h.Orders.GetOrderHistory)
				})
			})

			r.Get("/reports/lifecycle", h.Reports.Lifecycle)
		})

		if h.RateLimit != nil {
			r.Get("/rate-limit/status", h.RateLimit.Status)
		}
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
