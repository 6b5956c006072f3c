// Package handler exposes the read-only inventory route. Inventory is
// never mutated directly over HTTP: donations add units, allocation commits
// remove them.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/inventory/models"
	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Lister is the read slice of the inventory store.
type Lister interface {
	ListAll(ctx context.Context) ([]models.Record, error)
	ListByBank(ctx context.Context, bankID domain.BankID) ([]models.Record, error)
}

type Handler struct {
	inventory Lister
	logger    *slog.Logger
}

func New(inventory Lister, logger *slog.Logger) *Handler {
	return &Handler{inventory: inventory, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/inventory", h.handleList)
}

type recordResponse struct {
	BankID     string `json:"bank_id"`
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
	UpdatedAt  string `json:"updated_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []models.Record
		err     error
	)
	if raw := r.URL.Query().Get("bank_id"); raw != "" {
		bankID, parseErr := domain.ParseBankID(raw)
		if parseErr != nil {
			httputil.WriteError(w, parseErr)
			return
		}
		records, err = h.inventory.ListByBank(ctx, bankID)
	} else {
		records, err = h.inventory.ListAll(ctx)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "inventory list failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list inventory"))
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse{
			BankID:     rec.BankID.String(),
			BloodGroup: rec.BloodGroup.String(),
			Units:      rec.Units,
			UpdatedAt:  rec.UpdatedAt.Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"inventory": out})
}
