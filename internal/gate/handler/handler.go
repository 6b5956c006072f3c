// Package handler exposes the verification gate routes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/gate/models"
	"bloodlink/internal/platform/middleware"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the gate operations the handler needs.
type Service interface {
	Issue(ctx context.Context, actionKey, address string) error
	Confirm(ctx context.Context, actionKey, submittedCode string) (string, error)
}

// Handler handles verification gate endpoints.
type Handler struct {
	gate   Service
	logger *slog.Logger
}

func New(gate Service, logger *slog.Logger) *Handler {
	return &Handler{gate: gate, logger: logger}
}

// Register registers the gate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/gate/issue", h.handleIssue)
	r.Post("/gate/confirm", h.handleConfirm)
}

// actionKey maps the public action names onto internal action keys. The
// key embeds the email so a later address change cannot redeem the
// verification.
func actionKey(action, email string) (string, error) {
	switch action {
	case "donor-registration":
		return models.DonorRegistrationKey(email), nil
	case "request-creation":
		return models.RequestCreationKey(email), nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "action must be donor-registration or request-creation")
	}
}

type issueRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	key, err := actionKey(req.Action, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.gate.Issue(ctx, key, req.Email); err != nil {
		h.logFailure(ctx, "code issue failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "code sent"})
}

type confirmRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Code   string `json:"code"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	key, err := actionKey(req.Action, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	email, err := h.gate.Confirm(ctx, key, req.Code)
	if err != nil {
		h.logFailure(ctx, "code confirm failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "verified",
		"email":  email,
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeDeliveryFailed {
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
