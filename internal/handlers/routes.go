package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers groups every API handler mounted under /api/v1.
type Handlers struct {
	Accounts  *AccountHandler
	Wallet    *WalletHandler
	Referrals *ReferralHandler
	Webhooks  *WebhookHandler
	Catalog   *CatalogHandler
}

// Mount registers the API routes on r. auth guards the account-scoped
// endpoints.
func (h Handlers) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	// Public endpoints (no auth required)
	r.Post("/auth/register", h.Accounts.Register)
	r.Post("/auth/login", h.Accounts.Login)
	r.Get("/fati/options", h.Catalog.GetPurchaseOptions)
	r.Get("/plans", h.Catalog.GetPlans)
	r.Post("/webhooks/stripe", h.Webhooks.Stripe)

	// Protected endpoints (auth required)
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/auth/logout", h.Accounts.Logout)
		r.Get("/auth/account", h.Accounts.GetAccount)

		r.Get("/fati/balance", h.Wallet.GetBalance)
		r.Get("/fati/transactions", h.Wallet.ListTransactions)
		r.Get("/fati/recent", h.Wallet.GetRecent)
		r.Get("/fati/summary", h.Wallet.GetSummary)
		r.Post("/fati/transfer", h.Wallet.Transfer)
		r.Post("/fati/spend", h.Wallet.Spend)

		r.Get("/referrals", h.Referrals.GetInfo)
		r.Get("/referrals/stats", h.Referrals.GetStats)
		r.Post("/referrals/track", h.Referrals.Track)
	})
}
