package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/broker-ledger/internal/api/handlers"
	"github.com/baharkarakas/broker-ledger/internal/config"
	"github.com/baharkarakas/broker-ledger/internal/metrics"
	"github.com/baharkarakas/broker-ledger/internal/middleware"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type RouterDeps struct {
	Cfg      config.Config
	Handlers *handlers.Handlers
	Auth     *middleware.AuthMiddleware
}

func NewRouter(d RouterDeps) http.Handler {
	h := d.Handlers
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", middleware.HeaderRequestID},
		ExposedHeaders: []string{middleware.HeaderRequestID},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Auth)

			// ---------- ledger ----------
			r.Get("/wallet", h.GetWallet)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/{id}", h.GetTransaction)

			// ---------- requests & offers ----------
			r.Post("/requests", h.CreateRequest)
			r.Get("/requests/{id}", h.GetRequest)
			r.Post("/requests/{id}/cancel", h.CancelRequest)
			r.Post("/requests/{id}/complete", h.CompleteRequest)
			r.Get("/requests/{id}/offers", h.ListOffers)
			r.Post("/requests/{id}/offers", h.SubmitOffer)
			r.Post("/offers/{id}/accept", h.AcceptOffer)
			r.Post("/offers/{id}/reject", h.RejectOffer)

			// ---------- disputes ----------
			r.Post("/requests/{id}/disputes", h.OpenDispute)
			r.Get("/disputes/{id}", h.GetDispute)
			r.Post("/disputes/{id}/replies", h.AddDisputeReply)
			r.Post("/disputes/{id}/cancel", h.CancelDispute)

			// ---------- withdrawals ----------
			r.Post("/withdrawals", h.CreateWithdrawal)
			r.Get("/withdrawals", h.ListWithdrawals)
			r.Get("/withdrawals/{id}", h.GetWithdrawal)

			// ---------- admin ----------
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Post("/transactions", h.RecordTransaction)
				r.Patch("/transactions/{id}/status", h.SetTransactionStatus)
				r.Post("/offers/{id}/price", h.AdjustOfferPrice)
				r.Post("/requests/{id}/margin", h.ApplyMargin)
				r.Post("/disputes/{id}/review", h.ReviewDispute)
				r.Post("/disputes/{id}/resolve", h.ResolveDispute)
				r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
				r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
				r.Post("/withdrawals/{id}/process", h.ProcessWithdrawal)
			})
		})
	})

	return r
}
