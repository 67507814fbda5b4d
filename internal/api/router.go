/**
 * @description
 * This file sets up the HTTP router for the banking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BankingRoutes creates and returns a new router for the banking service.
func BankingRoutes(h *BankingHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		// Apply JWT authentication middleware for production
		r.Use(AuthMiddleware(jwksURL))

		// Wallet endpoints
		r.Post("/wallet", h.CreateWalletHandler)
		r.Get("/wallet", h.GetWalletHandler)
		r.Get("/wallet/transactions", h.ListTransactionsHandler)

		// Money movement endpoints
		r.Post("/transfers", h.TransferHandler)
		r.Get("/transfers/limit-check", h.CheckTransferLimitHandler)
		r.Post("/deposits", h.DepositHandler)

		// Beneficiary management endpoints
		r.Get("/beneficiaries", h.ListBeneficiariesHandler)
		r.Post("/beneficiaries", h.AddBeneficiaryHandler)

		// Two-factor enrollment endpoints
		r.Post("/two-factor/enroll", h.EnrollTwoFactorHandler)
		r.Post("/two-factor/confirm", h.ConfirmTwoFactorHandler)
	})

	return r
}
