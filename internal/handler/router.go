package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/team089/optimal-cashback/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса оптимального кэшбэка.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/quick_login", h.QuickLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/logout", h.Logout)

			r.Get("/state", h.GetState)

			r.Post("/banks/toggle", h.ToggleBank)
			r.Post("/banks/confirm", h.ConfirmBanks)
			r.Post("/banks/select", h.SelectBank)
			r.Post("/banks/expand", h.ToggleExpanded)

			r.Post("/consents/approve", h.ApproveConsent)
			r.Post("/consents/refresh", h.RefreshConsents)

			r.Post("/analysis", h.RequestAnalysis)

			r.Post("/cashbacks/toggle", h.ToggleCashback)
			r.Post("/cashbacks/confirm", h.ConfirmCashbacks)

			r.Get("/optimal_card", h.OptimalCard)
			r.Get("/categories/transactions", h.CategoryTransactions)
			r.Post("/categories/select", h.SelectCategory)
			r.Post("/back", h.BackToMain)

			r.Get("/income", h.Income)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
