package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/gate"
	"bloodlink/internal/gate/handler"
	"bloodlink/internal/gate/store"
	"bloodlink/pkg/testutil"
)

// captureSender records the last delivered body so tests can pull the code
// out of it.
type captureSender struct {
	mu   sync.Mutex
	body string
}

func (s *captureSender) Send(_ context.Context, _, _, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := strings.LastIndex(s.body, ": ")
	require.GreaterOrEqual(t, i, 0)
	return s.body[i+2 : i+8]
}

func newRouter(t *testing.T) (chi.Router, *captureSender) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &captureSender{}
	svc := gate.NewService(store.NewMemory(), sender, logger, 5*time.Minute)
	h := handler.New(svc, logger)

	r := chi.NewRouter()
	h.Register(r)
	return r, sender
}

func TestIssueAndConfirm(t *testing.T) {
	r, sender := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/issue", map[string]any{
		"action": "donor-registration",
		"email":  "dana@example.com",
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	rr = testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/confirm", map[string]any{
		"action": "donor-registration",
		"email":  "dana@example.com",
		"code":   sender.lastCode(t),
	}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	require.Equal(t, "verified", (*resp)["status"])
	require.Equal(t, "dana@example.com", (*resp)["email"])
}

func TestIssueUnknownAction(t *testing.T) {
	r, _ := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/issue", map[string]any{
		"action": "password-reset",
		"email":  "dana@example.com",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestIssueInvalidEmail(t *testing.T) {
	r, _ := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/issue", map[string]any{
		"action": "donor-registration",
		"email":  "not-an-email",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestConfirmWithoutIssue(t *testing.T) {
	r, _ := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/confirm", map[string]any{
		"action": "request-creation",
		"email":  "ward4@example.com",
		"code":   "123456",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestConfirmWrongCode(t *testing.T) {
	r, sender := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/issue", map[string]any{
		"action": "donor-registration",
		"email":  "dana@example.com",
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	wrong := "000000"
	if sender.lastCode(t) == wrong {
		wrong = "000001"
	}
	rr = testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/gate/confirm", map[string]any{
		"action": "donor-registration",
		"email":  "dana@example.com",
		"code":   wrong,
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "code_mismatch")
}
