package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/currency"
	"github.com/marketplace/adminpanel/internal/dispute"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/escrow"
	"github.com/marketplace/adminpanel/internal/ingestion"
	"github.com/marketplace/adminpanel/internal/reconciliation"
	"github.com/marketplace/adminpanel/internal/repository"
	"github.com/marketplace/adminpanel/internal/resolution"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	escrowRepo *repository.EscrowRepo
	resolution *resolution.Service
	ingestion  *ingestion.Service
	audit      *reconciliation.Service
	log        logrus.FieldLogger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}

	var gateErr *dispute.GateError
	if errors.As(err, &gateErr) {
		body["reason"] = string(gateErr.Reason)
	}
	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		body["field"] = fieldErr.Field
	}

	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	h.writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGateClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDisputeResolved), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTimestamp),
		errors.Is(err, domain.ErrInvalidPercentage),
		errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func actor(r *http.Request) string {
	if id := r.Header.Get("X-Admin-ID"); id != "" {
		return id
	}
	return "admin"
}

// --- ComputeBreakdown ---

type breakdownRequest struct {
	NetToInfluencer decimal.Decimal `json:"net_to_influencer"`
	Currency        string          `json:"currency"`
}

type breakdownResponse struct {
	domain.FinancialBreakdown
	Formatted map[string]string `json:"formatted"`
}

func (h *Handlers) ComputeBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	net := req.NetToInfluencer
	if req.Currency != "" {
		sar, err := currency.ToSAR(net, req.Currency)
		if err != nil {
			h.writeServiceError(w, r, domain.NewFieldError(domain.ErrInvalidField, "currency", err.Error()))
			return
		}
		net = sar
	}

	b, err := escrow.ComputeBreakdown(net)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, breakdownResponse{
		FinancialBreakdown: b,
		Formatted: map[string]string{
			"net_to_influencer": currency.Format(b.NetToInfluencer),
			"commission":        currency.Format(b.Commission),
			"vat":               currency.Format(b.VAT),
			"total_paid":        currency.Format(b.TotalPaid),
		},
	})
}

// --- ListEscrow ---

func (h *Handlers) ListEscrow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.EscrowFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 50),
	}

	payments, total, err := h.escrowRepo.List(filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []domain.EscrowPayment{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// --- GetEscrowSummary ---

func (h *Handlers) GetEscrowSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.escrowRepo.Summary()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// --- RunAudit ---

func (h *Handlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	result, err := h.audit.Run()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// --- Import ---

func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	// Accept multipart form.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	format := r.FormValue("format")
	if format == "" {
		h.writeError(w, http.StatusBadRequest, "format is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestion.Import(data, format)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// Malformed files surface as plain decode errors.
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.resolution.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dash)
}
