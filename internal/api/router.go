/**
 * @description
 * This file sets up the HTTP router for the zakat-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ZakatRoutes creates and returns a new router for the zakat service.
func ZakatRoutes(h *ZakatHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes behind the internal API key check.
	r.Group(func(r chi.Router) {
		r.Use(RequireInternalAPIKey(internalAPIKey))

		// Methodology catalog and stateless calculation.
		r.Get("/methodologies", h.MethodologiesHandler)
		r.Get("/calculate", h.CalculateHandler)

		// Nisab year record lifecycle.
		r.Post("/records", h.CreateRecordHandler)
		r.Get("/records", h.ListRecordsHandler)
		r.Get("/records/{recordID}", h.GetRecordHandler)
		r.Delete("/records/{recordID}", h.DeleteRecordHandler)
		r.Post("/records/{recordID}/refresh", h.RefreshAssetsHandler)
		r.Post("/records/{recordID}/apply-refresh", h.ApplyRefreshHandler)
		r.Post("/records/{recordID}/finalize", h.FinalizeHandler)
		r.Post("/records/{recordID}/unlock", h.UnlockHandler)
		r.Get("/records/{recordID}/payments", h.ListRecordPaymentsHandler)

		// Payment ledger.
		r.Post("/payments", h.RecordPaymentHandler)
		r.Put("/payments/{paymentID}", h.EditPaymentHandler)
		r.Delete("/payments/{paymentID}", h.DeletePaymentHandler)
	})

	return r
}
