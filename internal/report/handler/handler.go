// Package handler exposes the reporting routes.
package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/report"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the reporting operations the handler needs.
type Service interface {
	Summary(ctx context.Context) (*report.Summary, error)
	ExportCSV(ctx context.Context, table string, w io.Writer) error
}

// Handler handles report endpoints.
type Handler struct {
	reports Service
	logger  *slog.Logger
}

func New(reports Service, logger *slog.Logger) *Handler {
	return &Handler{reports: reports, logger: logger}
}

// Register registers the report routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/summary", h.handleSummary)
	r.Get("/exports/{table}", h.handleExport)
}

type lowRecord struct {
	BankID     string `json:"bank_id"`
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
}

type summaryResponse struct {
	TotalDonors     int         `json:"total_donors"`
	TotalBanks      int         `json:"total_banks"`
	TotalUnits      int         `json:"total_units"`
	PendingRequests int         `json:"pending_requests"`
	InactiveDonors  int         `json:"inactive_donors"`
	LowInventory    []lowRecord `json:"low_inventory"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.reports.Summary(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "summary failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := summaryResponse{
		TotalDonors:     summary.TotalDonors,
		TotalBanks:      summary.TotalBanks,
		TotalUnits:      summary.TotalUnits,
		PendingRequests: summary.PendingRequests,
		InactiveDonors:  summary.InactiveDonors,
		LowInventory:    make([]lowRecord, 0, len(summary.LowInventory)),
	}
	for _, rec := range summary.LowInventory {
		resp.LowInventory = append(resp.LowInventory, lowRecord{
			BankID:     rec.BankID.String(),
			BloodGroup: rec.BloodGroup.String(),
			Units:      rec.Units,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table := chi.URLParam(r, "table")

	// Buffer the export so a mid-stream store failure still yields a clean
	// error response instead of a truncated file.
	var buf bytes.Buffer
	if err := h.reports.ExportCSV(ctx, table, &buf); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "export failed",
				"table", table,
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+table+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}
