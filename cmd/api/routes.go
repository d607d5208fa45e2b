package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josh-kwaku/custody-ledger/internal/auth"
	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/middleware"
	"github.com/josh-kwaku/custody-ledger/internal/repository"
)

type handlers struct {
	health    *handler.HealthHandler
	accounts  *handler.AccountHandler
	transfers *handler.TransferHandler
	exchanges *handler.ExchangeHandler
	fx        *handler.FXHandler
	decisions *handler.DecisionHandler
}

func newRouter(h handlers, idempotency *repository.IdempotencyRepository, tokens *auth.Tokens) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.Get("/health", h.health.Liveness)
	r.Get("/health/ready", h.health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", h.accounts.Register)
		r.Get("/fx/rates", h.fx.Rates)
		r.Get("/fx/currencies", h.fx.Currencies)
		r.Get("/fx/quote", h.fx.Quote)
		r.Post("/decisions", h.decisions.Receive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))

			r.Get("/accounts/me", h.accounts.Me)
			r.Get("/accounts/me/wallets", h.accounts.Wallets)
			r.Get("/accounts/me/activity", h.accounts.Activity)
			r.Get("/accounts/me/pending", h.accounts.Pending)

			r.Get("/notifications", h.accounts.Notifications)
			r.Post("/notifications/{id}/read", h.accounts.MarkNotificationRead)

			r.Get("/transfers/{id}", h.transfers.Get)
			r.Post("/transfers/{id}/cancel", h.transfers.Cancel)
			r.Post("/transfers/{id}/resend", h.transfers.Resend)

			r.Get("/exchanges/{id}", h.exchanges.Get)
			r.Post("/exchanges/{id}/cancel", h.exchanges.Cancel)
			r.Post("/exchanges/{id}/reject", h.exchanges.Reject)
			r.Post("/exchanges/{id}/resend", h.exchanges.Resend)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Idempotency(idempotency))
				r.Post("/transfers", h.transfers.Create)
				r.Post("/exchanges", h.exchanges.Create)
			})
		})
	})

	return r
}
