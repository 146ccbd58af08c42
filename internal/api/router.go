/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS layer for browser-based admin clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/suba/wallet-service/internal/domain"
)

// WalletRoutes creates and returns a new router for the wallet service.
func WalletRoutes(h *WalletHandlers, jwtSecret string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Every authenticated account.
		r.Get("/balance", h.BalanceHandler)
		r.Get("/transactions", h.TransactionsHandler)
		r.Post("/withdrawals", h.WithdrawalHandler)
		r.Get("/recharges", h.ListRechargesHandler)
		r.Get("/recharges/{id}", h.GetRechargeHandler)

		// Driver-side boarding.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleDriver))
			r.Post("/boarding/nfc", h.NFCBoardingHandler)
			r.Post("/boarding/qr/token", h.IssueQRTokenHandler)
		})

		// Passenger-side boarding, recharges, and card lifecycle.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RolePassenger))
			r.Post("/boarding/qr", h.QRBoardingHandler)
			r.Post("/boarding/mobile", h.MobileBoardingHandler)
			r.Post("/recharges", h.SubmitRechargeHandler)
			r.Post("/cards/requests", h.RequestCardHandler)
			r.Post("/cards/requests/payment", h.ReportCardPaymentHandler)
			r.Post("/cards/link", h.LinkCardHandler)
			r.Get("/cards/mine", h.MyCardHandler)
		})

		// Admin reconciliation and card review.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Get("/recharges/review", h.ReviewQueueHandler)
			r.Post("/recharges/{id}/approve", h.ApproveRechargeHandler)
			r.Post("/recharges/{id}/reject", h.RejectRechargeHandler)
			r.Post("/cards/requests/{id}/approve", h.ApproveCardRequestHandler)
			r.Post("/cards/requests/{id}/reject", h.RejectCardRequestHandler)
			r.Post("/cards/{uid}/block", h.BlockCardHandler)
		})
	})

	return r
}
