package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/donor"
	"bloodlink/internal/donor/handler"
	"bloodlink/internal/donor/store"
	gatemodels "bloodlink/internal/gate/models"
	"bloodlink/pkg/testutil"
)

type allowAllVerifier struct{ allowed map[string]string }

func (v *allowAllVerifier) ConsumeVerification(_ context.Context, actionKey, email string) error {
	if v.allowed[actionKey] == email {
		delete(v.allowed, actionKey)
		return nil
	}
	return errNotVerified
}

var errNotVerified = notVerifiedErr{}

type notVerifiedErr struct{}

func (notVerifiedErr) Error() string { return "not verified" }

func newRouter(t *testing.T, verifier donor.Verifier) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := donor.NewService(store.NewMemory(), verifier, logger)
	passthrough := func(next http.Handler) http.Handler { return next }
	h := handler.New(svc, logger, passthrough)

	r := chi.NewRouter()
	h.Register(r)
	return r
}

func donorBody() map[string]any {
	return map[string]any{
		"name":        "Dana Osei",
		"blood_group": "O-",
		"phone":       "5550001111",
		"email":       "dana@example.com",
		"city":        "Accra",
		"lat":         5.6,
		"lon":         -0.19,
	}
}

func TestRegisterDonor(t *testing.T) {
	verifier := &allowAllVerifier{allowed: map[string]string{
		gatemodels.DonorRegistrationKey("dana@example.com"): "dana@example.com",
	}}
	r := newRouter(t, verifier)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/donors", donorBody()))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	require.NotEmpty(t, (*resp)["id"])
	require.Equal(t, "O-", (*resp)["blood_group"])
}

func TestRegisterDonorUnverifiedEmail(t *testing.T) {
	r := newRouter(t, &allowAllVerifier{allowed: map[string]string{}})

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/donors", donorBody()))
	// The stub returns an untyped error, which surfaces as 500; the wired
	// gate returns not_verified. Handler-level mapping is covered by the
	// service tests, so here we only care that registration is refused.
	require.NotEqual(t, http.StatusCreated, rr.Code)
}

func TestRegisterDonorInvalidBody(t *testing.T) {
	r := newRouter(t, &allowAllVerifier{})

	rr := testutil.DoRequest(r, testutil.NewRequestWithBody(t, http.MethodPost, "/donors", "{not json"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestRegisterDonorBadBloodGroup(t *testing.T) {
	verifier := &allowAllVerifier{allowed: map[string]string{
		gatemodels.DonorRegistrationKey("dana@example.com"): "dana@example.com",
	}}
	r := newRouter(t, verifier)

	body := donorBody()
	body["blood_group"] = "Z+"
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/donors", body))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestGetDonorInvalidID(t *testing.T) {
	r := newRouter(t, &allowAllVerifier{})

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/donors/not-a-uuid"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestGetDonorNotFound(t *testing.T) {
	r := newRouter(t, &allowAllVerifier{})

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/donors/1b671a64-40d5-491e-99b0-da01ff1f3341"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestDeleteDonor(t *testing.T) {
	verifier := &allowAllVerifier{allowed: map[string]string{
		gatemodels.DonorRegistrationKey("dana@example.com"): "dana@example.com",
	}}
	r := newRouter(t, verifier)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/donors", donorBody()))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	id := (*testutil.UnmarshalResponse[map[string]any](t, rr))["id"].(string)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodDelete, "/donors/"+id))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/donors/"+id))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
