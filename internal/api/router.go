package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/ingestion"
	"github.com/marketplace/adminpanel/internal/logger"
	"github.com/marketplace/adminpanel/internal/reconciliation"
	"github.com/marketplace/adminpanel/internal/repository"
	"github.com/marketplace/adminpanel/internal/resolution"
)

// Deps are the services the HTTP layer calls into.
type Deps struct {
	EscrowRepo *repository.EscrowRepo
	Resolution *resolution.Service
	Ingestion  *ingestion.Service
	Audit      *reconciliation.Service
	Log        logrus.FieldLogger
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(deps Deps) http.Handler {
	h := &Handlers{
		escrowRepo: deps.EscrowRepo,
		resolution: deps.Resolution,
		ingestion:  deps.Ingestion,
		audit:      deps.Audit,
		log:        deps.Log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Escrow.
		r.Post("/escrow/breakdown", h.ComputeBreakdown)
		r.Get("/escrow", h.ListEscrow)
		r.Get("/escrow/summary", h.GetEscrowSummary)
		r.Get("/escrow/audit", h.RunAudit)

		// Imports.
		r.Post("/imports", h.Import)

		// Disputes.
		r.Route("/disputes", func(r chi.Router) {
			r.Get("/", h.ListDisputes)
			r.Get("/urgent", h.ListUrgent)
			r.Get("/stats", h.GetStats)
			r.Get("/{id}", h.GetDispute)
			r.Post("/{id}/status", h.ChangeStatus)
			r.Post("/{id}/messages", h.PostMessage)
			r.Post("/{id}/split-preview", h.PreviewSplit)
			r.Post("/{id}/resolve", h.Resolve)
		})

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
