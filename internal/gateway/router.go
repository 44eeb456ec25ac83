// ABOUTME: chi router wiring every ledger endpoint behind the auth middleware chain
// ABOUTME: Health probes are public; /api routes require a bearer token

package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/dedupe"
)

// newRouter builds the HTTP handler. replay may be nil to disable
// Idempotency-Key handling.
func newRouter(a *api, users auth.UserLookup, verifier auth.TokenVerifier, replay *dedupe.Cache[*recordedResponse]) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Get("/health/ready", a.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.HTTPAuthMiddleware(users, verifier))
		if replay != nil {
			r.Use(idempotencyMiddleware(replay, a.logger))
		}

		// Reachable before registration. Profile and notification writes
		// from an unregistered or revoked caller answer invalidUser.
		r.Get("/me", a.handleMe)
		r.Post("/invites/accept", a.handleAcceptInvite)
		r.Put("/profile", a.handleSetProfile)
		r.Put("/notifications", a.handleSetNotifications)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRegisteredHTTP())

			r.Get("/admin/check", a.handleAdminCheck)

			// Unguarded read; a non-admin revoke is answered with unauthorizedActivity.
			r.Get("/users", a.handleListUsers)
			r.Post("/users/{principal}/revoke", a.handleRevokeUser)

			r.Get("/categories", a.handleListCategories)
			r.Post("/categories", a.handleManageCategory)
			r.Get("/payment-methods", a.handleListPaymentMethods)
			r.Post("/payment-methods", a.handleAddPaymentMethod)
			r.Delete("/payment-methods/{name}", a.handleDeletePaymentMethod)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", a.handleListTransactions)
				r.Post("/", a.handleAddTransaction)
				r.Get("/mine", a.handleMyTransactions)
				r.Get("/{id}", a.handleGetTransaction)
				r.Put("/{id}", a.handleUpdateTransaction)
				r.Delete("/{id}", a.handleDeleteTransaction)
			})

			r.Route("/budgets", func(r chi.Router) {
				r.Get("/", a.handleListBudgets)
				r.Get("/summary", a.handleBudgetSummary)
				r.Get("/alerts", a.handleBudgetAlerts)
				r.Put("/{category}", a.handleSetBudget)
				r.Delete("/{category}", a.handleDeleteBudget)
				r.Get("/{category}/status", a.handleBudgetStatus)
			})

			r.Route("/summary", func(r chi.Router) {
				r.Get("/categories", a.handleCategorySummary)
				r.Get("/payment-methods", a.handlePaymentMethodSummary)
				r.Get("/dashboard", a.handleDashboard)
			})

			r.Get("/profile", a.handleGetProfile)
			r.Get("/notifications", a.handleGetNotifications)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdminHTTP())
				r.Get("/admin/audit", a.handleAuditLog)
				r.Get("/invites", a.handleListInvites)
				r.Post("/invites", a.handleCreateInvite)
			})
		})
	})

	return r
}

// requestLogger logs one line per request at debug level, and at warn for
// server errors.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
