// Package handler exposes donor routes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/donor/models"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the donor operations the handler needs.
type Service interface {
	Register(ctx context.Context, p models.DonorParams) (*models.Donor, error)
	Update(ctx context.Context, id domain.DonorID, p models.DonorParams) (*models.Donor, error)
	Get(ctx context.Context, id domain.DonorID) (*models.Donor, error)
	List(ctx context.Context, f models.Filter) ([]*models.Donor, error)
	Delete(ctx context.Context, id domain.DonorID) error
}

// Handler handles donor endpoints.
type Handler struct {
	donors Service
	logger *slog.Logger
	admin  func(http.Handler) http.Handler
}

// New creates a donor Handler. admin gates the destructive routes.
func New(donors Service, logger *slog.Logger, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{donors: donors, logger: logger, admin: admin}
}

// Register registers the donor routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donors", h.handleRegister)
	r.Get("/donors", h.handleList)
	r.Get("/donors/{id}", h.handleGet)
	r.Put("/donors/{id}", h.handleUpdate)
	r.With(h.admin).Delete("/donors/{id}", h.handleDelete)
}

type donorRequest struct {
	Name        string  `json:"name"`
	Gender      string  `json:"gender"`
	DateOfBirth string  `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	BloodGroup  string  `json:"blood_group"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

func (req donorRequest) toParams() (models.DonorParams, error) {
	p := models.DonorParams{
		Name:       req.Name,
		Gender:     req.Gender,
		BloodGroup: req.BloodGroup,
		Phone:      req.Phone,
		Email:      req.Email,
		City:       req.City,
		Lat:        req.Lat,
		Lon:        req.Lon,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return p, dErrors.New(dErrors.CodeBadRequest, "date_of_birth must be YYYY-MM-DD")
		}
		p.DateOfBirth = &dob
	}
	return p, nil
}

type donorResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Gender           string  `json:"gender,omitempty"`
	DateOfBirth      string  `json:"date_of_birth,omitempty"`
	BloodGroup       string  `json:"blood_group"`
	Phone            string  `json:"phone"`
	Email            string  `json:"email"`
	City             string  `json:"city"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	LastDonationDate string  `json:"last_donation_date,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func toDonorResponse(d *models.Donor) donorResponse {
	resp := donorResponse{
		ID:         d.ID.String(),
		Name:       d.Name,
		Gender:     d.Gender,
		BloodGroup: d.BloodGroup.String(),
		Phone:      d.Phone,
		Email:      d.Email,
		City:       d.City,
		Lat:        d.Location.Lat,
		Lon:        d.Location.Lon,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
	}
	if d.DateOfBirth != nil {
		resp.DateOfBirth = d.DateOfBirth.Format("2006-01-02")
	}
	if d.LastDonationDate != nil {
		resp.LastDonationDate = d.LastDonationDate.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := req.toParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	d, err := h.donors.Register(ctx, p)
	if err != nil {
		h.logFailure(ctx, "donor registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDonorResponse(d))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseDonorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req donorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := req.toParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	d, err := h.donors.Update(ctx, id, p)
	if err != nil {
		h.logFailure(ctx, "donor update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonorResponse(d))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDonorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.donors.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDonorResponse(d))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	f := models.Filter{
		Name: r.URL.Query().Get("name"),
		City: r.URL.Query().Get("city"),
	}
	if raw := r.URL.Query().Get("blood_group"); raw != "" {
		group, err := domain.ParseBloodGroup(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.BloodGroup = &group
	}

	donors, err := h.donors.List(r.Context(), f)
	if err != nil {
		h.logFailure(r.Context(), "donor list failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]donorResponse, 0, len(donors))
	for _, d := range donors {
		out = append(out, toDonorResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"donors": out})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseDonorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.donors.Delete(ctx, id); err != nil {
		h.logFailure(ctx, "donor delete failed", err)
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
