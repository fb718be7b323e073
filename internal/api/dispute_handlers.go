package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/repository"
	"github.com/marketplace/adminpanel/internal/resolution"
	"github.com/marketplace/adminpanel/internal/validation"
)

// --- ListDisputes ---

func (h *Handlers) ListDisputes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DisputeFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = resolution.SortUrgency
	}

	items, total, err := h.resolution.List(r.Context(), filter, sortBy)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"disputes": items,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
		"sort":     sortBy,
	})
}

func (h *Handlers) ListUrgent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	items, err := h.resolution.Urgent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"disputes": items})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.resolution.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetDispute(w http.ResponseWriter, r *http.Request) {
	detail, err := h.resolution.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// --- ChangeStatus ---

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	d, err := h.resolution.ChangeStatus(r.Context(), chi.URLParam(r, "id"), domain.DisputeStatus(req.Status), actor(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// --- PostMessage ---

type messageRequest struct {
	Author string `json:"author" validate:"required,oneof=business influencer admin"`
	Body   string `json:"body" validate:"required"`
}

func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	m, err := h.resolution.PostMessage(r.Context(), chi.URLParam(r, "id"), domain.Role(req.Author), req.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, m)
}

// --- PreviewSplit / Resolve ---

// decisionRequest is the ruling form. Percentage is a pointer so a split
// submitted without one is told apart from an explicit 0.
type decisionRequest struct {
	Type       string `json:"type" validate:"required,oneof=influencer split business"`
	Percentage *int   `json:"percentage" validate:"omitempty,gte=0,lte=100"`
	Reasoning  string `json:"reasoning"`
	Reviewed   bool   `json:"reviewed"`
	Understand bool   `json:"understand"`
}

func (req decisionRequest) decision() domain.Decision {
	return domain.Decision{
		Type:       domain.DecisionType(req.Type),
		Percentage: req.Percentage,
		Reasoning:  req.Reasoning,
		Reviewed:   req.Reviewed,
		Understand: req.Understand,
	}
}

func (h *Handlers) PreviewSplit(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	p, err := h.resolution.PreviewSplit(r.Context(), chi.URLParam(r, "id"), req.decision())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	d, err := h.resolution.Resolve(r.Context(), chi.URLParam(r, "id"), req.decision(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}
