// Package handler exposes bank routes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/bank/models"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the bank operations the handler needs.
type Service interface {
	Create(ctx context.Context, p models.BankParams) (*models.Bank, error)
	Update(ctx context.Context, id domain.BankID, p models.BankParams) (*models.Bank, error)
	Get(ctx context.Context, id domain.BankID) (*models.Bank, error)
	List(ctx context.Context) ([]*models.Bank, error)
	Delete(ctx context.Context, id domain.BankID) error
}

// Handler handles bank endpoints.
type Handler struct {
	banks  Service
	logger *slog.Logger
	admin  func(http.Handler) http.Handler
}

func New(banks Service, logger *slog.Logger, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{banks: banks, logger: logger, admin: admin}
}

// Register registers the bank routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/banks", h.handleCreate)
	r.Get("/banks", h.handleList)
	r.Get("/banks/{id}", h.handleGet)
	r.Put("/banks/{id}", h.handleUpdate)
	r.With(h.admin).Delete("/banks/{id}", h.handleDelete)
}

type bankRequest struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (req bankRequest) toParams() models.BankParams {
	return models.BankParams{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		City:    req.City,
		Lat:     req.Lat,
		Lon:     req.Lon,
	}
}

type bankResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Phone     string  `json:"phone"`
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	CreatedAt string  `json:"created_at"`
}

func toBankResponse(b *models.Bank) bankResponse {
	return bankResponse{
		ID:        b.ID.String(),
		Name:      b.Name,
		Address:   b.Address,
		Phone:     b.Phone,
		City:      b.City,
		Lat:       b.Location.Lat,
		Lon:       b.Location.Lon,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	b, err := h.banks.Create(ctx, req.toParams())
	if err != nil {
		h.logFailure(ctx, "bank create failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toBankResponse(b))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBankID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	b, err := h.banks.Update(ctx, id, req.toParams())
	if err != nil {
		h.logFailure(ctx, "bank update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBankResponse(b))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBankID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := h.banks.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBankResponse(b))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	banks, err := h.banks.List(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "bank list failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]bankResponse, 0, len(banks))
	for _, b := range banks {
		out = append(out, toBankResponse(b))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"banks": out})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBankID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.banks.Delete(ctx, id); err != nil {
		h.logFailure(ctx, "bank delete failed", err)
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
