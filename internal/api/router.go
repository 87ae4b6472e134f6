package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contacerta/reconciler/internal/auth"
	"github.com/contacerta/reconciler/internal/ingestion"
	"github.com/contacerta/reconciler/internal/license"
	"github.com/contacerta/reconciler/internal/repository"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFrom returns the authenticated session claims, or nil outside the
// authenticated route group.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// requireAuth rejects requests without a valid Bearer token and stores the
// claims in the request context.
func requireAuth(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := authSvc.VerifyToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// requireLicense gates reconciliation work behind a valid activation.
func requireLicense(licenseSvc *license.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := licenseSvc.Check(); err != nil {
				writeError(w, http.StatusForbidden, "license: "+err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	runRepo *repository.RunRepo,
	ingestionSvc *ingestion.Service,
	authSvc *auth.Service,
	licenseSvc *license.Service,
) http.Handler {
	h := &Handlers{
		runRepo:      runRepo,
		ingestionSvc: ingestionSvc,
		authSvc:      authSvc,
		licenseSvc:   licenseSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Open endpoints: first-run registration, login and license status.
		r.Post("/auth/companies", h.RegisterCompany)
		r.Post("/auth/login", h.Login)
		r.Get("/license/status", h.GetLicenseStatus)

		// Everything else needs a session.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(authSvc))

			r.Post("/auth/users", h.CreateUser)
			r.Get("/reconciliations", h.ListRuns)
			r.Get("/reconciliations/{id}", h.GetRun)
			r.Get("/reconciliations/{id}/report.xlsx", h.GetRunExcel)
			r.Get("/reconciliations/{id}/report.pdf", h.GetRunPDF)
			r.Get("/dashboard", h.GetDashboard)

			// New reconciliation work additionally needs a valid license.
			r.Group(func(r chi.Router) {
				r.Use(requireLicense(licenseSvc))
				r.Post("/reconciliations/movements", h.ReconcileMovements)
				r.Post("/reconciliations/fiscal", h.ReconcileFiscal)
			})
		})
	})

	return r
}
