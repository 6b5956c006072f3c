package audit

import "context"

// Store persists audit events. Append-only; events are never updated or
// deleted by the application.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
