// Package handler exposes the urgent request routes, including the
// propose/commit pair backed by the allocation engine.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/allocation"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request/models"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	Create(ctx context.Context, p models.RequestParams) (*models.Request, error)
	Get(ctx context.Context, id domain.RequestID) (*models.Request, error)
	List(ctx context.Context, f models.Filter) ([]*models.Request, error)
	MarkFulfilled(ctx context.Context, id domain.RequestID) (*models.Request, error)
	Cancel(ctx context.Context, id domain.RequestID, admin bool, reason string) (*models.Request, error)
}

// Allocator is the allocation engine surface the handler needs.
type Allocator interface {
	Propose(ctx context.Context, requestID domain.RequestID) ([]allocation.Candidate, error)
	Commit(ctx context.Context, requestID domain.RequestID, c allocation.Candidate) (*models.Request, error)
}

// Handler handles request endpoints.
type Handler struct {
	requests      Service
	engine        Allocator
	logger        *slog.Logger
	optionalAdmin func(http.Handler) http.Handler
}

// New creates a request Handler. optionalAdmin attaches operator identity
// on routes whose behavior widens for admins.
func New(requests Service, engine Allocator, logger *slog.Logger, optionalAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{requests: requests, engine: engine, logger: logger, optionalAdmin: optionalAdmin}
}

// Register registers the request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requests", h.handleCreate)
	r.Get("/requests", h.handleList)
	r.Get("/requests/{id}", h.handleGet)
	r.Post("/requests/{id}/propose", h.handlePropose)
	r.Post("/requests/{id}/commit", h.handleCommit)
	r.Post("/requests/{id}/fulfill", h.handleFulfill)
	r.With(h.optionalAdmin).Post("/requests/{id}/cancel", h.handleCancel)
}

type createRequest struct {
	PatientName   string  `json:"patient_name"`
	BloodGroup    string  `json:"blood_group"`
	UnitsRequired int     `json:"units_required"`
	City          string  `json:"city"`
	Email         string  `json:"email"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
}

type requestResponse struct {
	ID            string  `json:"id"`
	PatientName   string  `json:"patient_name"`
	BloodGroup    string  `json:"blood_group"`
	UnitsRequired int     `json:"units_required"`
	City          string  `json:"city"`
	Email         string  `json:"email"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Status        string  `json:"status"`
	AssignedKind  string  `json:"assigned_kind,omitempty"`
	AssignedID    string  `json:"assigned_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toRequestResponse(r *models.Request) requestResponse {
	resp := requestResponse{
		ID:            r.ID.String(),
		PatientName:   r.PatientName,
		BloodGroup:    r.BloodGroup.String(),
		UnitsRequired: r.UnitsRequired,
		City:          r.City,
		Email:         r.Email,
		Lat:           r.Location.Lat,
		Lon:           r.Location.Lon,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
	if r.AssignedKind != "" {
		resp.AssignedKind = string(r.AssignedKind)
	}
	if r.AssignedBankID != nil {
		resp.AssignedID = r.AssignedBankID.String()
	} else if r.AssignedDonorID != nil {
		resp.AssignedID = r.AssignedDonorID.String()
	}
	return resp
}

type candidateResponse struct {
	Kind            string  `json:"kind"`
	BankID          string  `json:"bank_id,omitempty"`
	DonorID         string  `json:"donor_id,omitempty"`
	Units           int     `json:"units,omitempty"`
	DistanceSquared float64 `json:"distance_squared"`
}

func toCandidateResponse(c allocation.Candidate) candidateResponse {
	resp := candidateResponse{
		Kind:            string(c.Kind),
		Units:           c.Units,
		DistanceSquared: c.DistanceSquared,
	}
	if c.BankID != nil {
		resp.BankID = c.BankID.String()
	}
	if c.DonorID != nil {
		resp.DonorID = c.DonorID.String()
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.requests.Create(ctx, models.RequestParams{
		PatientName:   req.PatientName,
		BloodGroup:    req.BloodGroup,
		UnitsRequired: req.UnitsRequired,
		City:          req.City,
		Email:         req.Email,
		Lat:           req.Lat,
		Lon:           req.Lon,
	})
	if err != nil {
		h.logFailure(ctx, "request creation failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var f models.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		f.Limit = limit
	}

	requests, err := h.requests.List(r.Context(), f)
	if err != nil {
		h.logFailure(r.Context(), "request list failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	candidates, err := h.engine.Propose(ctx, id)
	if err != nil {
		h.logFailure(ctx, "allocation proposal failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, toCandidateResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

type commitRequest struct {
	Kind    string `json:"kind"`
	BankID  string `json:"bank_id,omitempty"`
	DonorID string `json:"donor_id,omitempty"`
}

func (req commitRequest) toCandidate() (allocation.Candidate, error) {
	c := allocation.Candidate{Kind: models.AssignedKind(req.Kind)}
	switch c.Kind {
	case models.AssignedKindBank:
		bankID, err := domain.ParseBankID(req.BankID)
		if err != nil {
			return c, err
		}
		c.BankID = &bankID
	case models.AssignedKindDonor:
		donorID, err := domain.ParseDonorID(req.DonorID)
		if err != nil {
			return c, err
		}
		c.DonorID = &donorID
	default:
		return c, dErrors.New(dErrors.CodeBadRequest, "kind must be bank or donor")
	}
	return c, nil
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	candidate, err := req.toCandidate()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	assigned, err := h.engine.Commit(ctx, id, candidate)
	if err != nil {
		h.logFailure(ctx, "allocation commit failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(assigned))
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.requests.MarkFulfilled(ctx, id)
	if err != nil {
		h.logFailure(ctx, "request fulfill failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req cancelRequest
	if r.Body != nil {
		// The reason is optional; an empty body cancels without one.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	admin := middleware.GetOperator(ctx) != ""
	cancelled, err := h.requests.Cancel(ctx, id, admin, req.Reason)
	if err != nil {
		h.logFailure(ctx, "request cancel failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(cancelled))
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
