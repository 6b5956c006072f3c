// Package audit captures an append-only trail of coordination actions.
// Events are emitted from domain logic best-effort: a failed append is
// logged, never surfaced to the caller, and never blocks the mutation.
package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    string
	Subject   string // entity ID the action touched
	Email     string // contact address involved, when the action has one
	RequestID string // HTTP request correlation ID
	Reason    string
}

// Audit actions.
const (
	ActionDonorRegistered  = "donor_registered"
	ActionDonorDeleted     = "donor_deleted"
	ActionBankCreated      = "bank_created"
	ActionBankDeleted      = "bank_deleted"
	ActionDonationLogged   = "donation_logged"
	ActionDonationDeleted  = "donation_deleted"
	ActionRequestCreated   = "request_created"
	ActionRequestAssigned  = "request_assigned"
	ActionRequestFulfilled = "request_fulfilled"
	ActionRequestCancelled = "request_cancelled"
	ActionCodeIssued       = "code_issued"
	ActionCodeConfirmed    = "code_confirmed"
)
