package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/olaria-erp/olaria/internal/platform/httpx"
)

// ExportRateLimit caps export downloads per client per minute.
const ExportRateLimit = 10

// MountRoutes registers the report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportRateLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)

	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/indicators", h.handleIndicators)
		rr.Get("/top-products", h.handleTopProducts)
		rr.Get("/top-cities", h.handleTopCities)
		rr.Get("/payment-methods", h.handlePaymentMethods)
		rr.Get("/dashboard", h.handleDashboard)
		rr.Get("/trial-balance", h.handleTrialBalance)
		rr.Get("/overview", h.handleOverview)

		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/dashboard.csv", h.handleDashboardCSV)
			gr.Get("/dashboard.pdf", h.handleDashboardPDF)
			gr.Get("/trial-balance.csv", h.handleTrialBalanceCSV)
			gr.Get("/trial-balance.pdf", h.handleTrialBalancePDF)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
