package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cycle-discounts/internal/observability"
)

func Router(h *DiscountHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/products/{id}/discount", h.ApplyToProduct)
		r.Post("/products/{id}/display-price", h.UpdateDisplayPrice)
		r.Post("/cart/price", h.PriceCart)
		r.Post("/discounts/bulk", h.BulkApply)
		r.Get("/discounts/applied/{id}", h.GetApplied)
		r.Delete("/discounts/applied/{id}", h.RemoveApplied)
		r.Delete("/discounts/applied", h.ClearApplied)
		r.Get("/discounts/stats", h.Stats)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
