package testutil

import (
	"context"
	"net/http"

	"bloodlink/internal/platform/middleware"
)

// WithOperator stamps an operator name onto the request context, simulating
// what the admin middleware does after validating a capability token.
func WithOperator(req *http.Request, operator string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyOperator, operator)
	return req.WithContext(ctx)
}

// WithRequestID stamps a request ID onto the request context, simulating the
// request-ID middleware for handler-level tests.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyRequestID, requestID)
	return req.WithContext(ctx)
}
