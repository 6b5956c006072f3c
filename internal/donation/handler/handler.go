// Package handler exposes donation routes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/donation/models"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

const defaultRecentLimit = 10

// Service defines the donation operations the handler needs.
type Service interface {
	Log(ctx context.Context, p models.DonationParams) (*models.Donation, error)
	Delete(ctx context.Context, id domain.DonationID) error
	ListRecent(ctx context.Context, limit int) ([]*models.Donation, error)
}

// Handler handles donation endpoints.
type Handler struct {
	donations Service
	logger    *slog.Logger
	admin     func(http.Handler) http.Handler
}

func New(donations Service, logger *slog.Logger, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{donations: donations, logger: logger, admin: admin}
}

// Register registers the donation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donations", h.handleLog)
	r.Get("/donations/recent", h.handleRecent)
	r.With(h.admin).Delete("/donations/{id}", h.handleDelete)
}

type donationRequest struct {
	DonorID    string  `json:"donor_id"`
	BankID     string  `json:"bank_id"`
	Units      int     `json:"units"`
	Hemoglobin float64 `json:"hemoglobin"`
	DonatedAt  string  `json:"donated_at,omitempty"` // RFC 3339, defaults to now
}

type donationResponse struct {
	ID         string  `json:"id"`
	DonorID    string  `json:"donor_id"`
	BankID     string  `json:"bank_id"`
	BloodGroup string  `json:"blood_group"`
	Units      int     `json:"units"`
	Hemoglobin float64 `json:"hemoglobin"`
	DonatedAt  string  `json:"donated_at"`
}

func toDonationResponse(d *models.Donation) donationResponse {
	return donationResponse{
		ID:         d.ID.String(),
		DonorID:    d.DonorID.String(),
		BankID:     d.BankID.String(),
		BloodGroup: d.BloodGroup.String(),
		Units:      d.Units,
		Hemoglobin: d.Hemoglobin,
		DonatedAt:  d.DonatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p := models.DonationParams{
		DonorID:    req.DonorID,
		BankID:     req.BankID,
		Units:      req.Units,
		Hemoglobin: req.Hemoglobin,
	}
	if req.DonatedAt != "" {
		donatedAt, err := time.Parse(time.RFC3339, req.DonatedAt)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "donated_at must be RFC 3339"))
			return
		}
		p.DonatedAt = &donatedAt
	}

	d, err := h.donations.Log(ctx, p)
	if err != nil {
		h.logFailure(ctx, "donation log failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDonationResponse(d))
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	donations, err := h.donations.ListRecent(r.Context(), limit)
	if err != nil {
		h.logFailure(r.Context(), "donation list failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]donationResponse, 0, len(donations))
	for _, d := range donations {
		out = append(out, toDonationResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"donations": out})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseDonationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.donations.Delete(ctx, id); err != nil {
		h.logFailure(ctx, "donation delete failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
