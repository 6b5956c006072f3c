// Package models defines the urgent request aggregate and its status state
// machine.
package models

import (
	"strings"
	"time"

	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

// Status is the request lifecycle state.
//
// Transitions: pending -> assigned -> fulfilled; pending -> cancelled;
// assigned -> cancelled (admin only). A pending request may also go
// straight to fulfilled when the requester sourced blood outside the
// system. Fulfilled and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

// AssignedKind says what kind of source a request was matched to.
type AssignedKind string

const (
	AssignedKindBank  AssignedKind = "bank"
	AssignedKindDonor AssignedKind = "donor"
)

// Request is an urgent blood request.
type Request struct {
	ID              domain.RequestID
	PatientName     string
	BloodGroup      domain.BloodGroup
	UnitsRequired   int
	City            string
	Email           string
	Location        domain.Coordinates
	Status          Status
	AssignedKind    AssignedKind
	AssignedBankID  *domain.BankID
	AssignedDonorID *domain.DonorID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const (
	MinUnitsRequired = 1
	MaxUnitsRequired = 10
)

// RequestParams carries raw input for creating a request.
type RequestParams struct {
	PatientName   string
	BloodGroup    string
	UnitsRequired int
	City          string
	Email         string
	Lat           float64
	Lon           float64
}

// NewRequest validates params and constructs a pending request.
func NewRequest(id domain.RequestID, p RequestParams, now time.Time) (*Request, error) {
	patient := strings.TrimSpace(p.PatientName)
	if patient == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patient name is required")
	}
	city := strings.TrimSpace(p.City)
	if city == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "city is required")
	}
	if !email.ValidAddress(p.Email) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email address")
	}
	if p.UnitsRequired < MinUnitsRequired || p.UnitsRequired > MaxUnitsRequired {
		return nil, dErrors.New(dErrors.CodeBadRequest, "units required must be between 1 and 10")
	}
	group, err := domain.ParseBloodGroup(p.BloodGroup)
	if err != nil {
		return nil, err
	}
	loc, err := domain.NewCoordinates(p.Lat, p.Lon)
	if err != nil {
		return nil, err
	}

	return &Request{
		ID:            id,
		PatientName:   patient,
		BloodGroup:    group,
		UnitsRequired: p.UnitsRequired,
		City:          city,
		Email:         p.Email,
		Location:      loc,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// ParseStatus validates a status string at trust boundaries.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAssigned, StatusFulfilled, StatusCancelled:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid request status: "+s)
}

// CanAssign reports whether the request may be matched to a source. Only
// pending requests are assignable.
func (r *Request) CanAssign() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "request is not pending")
	}
	return nil
}

// CanFulfill reports whether the request may be marked fulfilled. Pending
// is allowed: requesters sometimes source blood outside the system and
// report back.
func (r *Request) CanFulfill() error {
	if r.Status.Terminal() {
		return dErrors.New(dErrors.CodeInvalidState, "request is already closed")
	}
	return nil
}

// CanCancel reports whether the request may be cancelled. Cancelling an
// assigned request needs the admin capability: the assignment already
// moved stock.
func (r *Request) CanCancel(admin bool) error {
	switch r.Status {
	case StatusPending:
		return nil
	case StatusAssigned:
		if !admin {
			return dErrors.New(dErrors.CodeForbidden, "cancelling an assigned request requires admin capability")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidState, "request is already closed")
	}
}

// Filter narrows request listings.
type Filter struct {
	Status *Status
	Limit  int
}
