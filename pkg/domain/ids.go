// Package domain holds shared domain primitives: typed entity IDs, the
// blood group enumeration, and geographic coordinates. Construct values via
// the Parse helpers at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "bloodlink/pkg/domain-errors"
)

// Typed IDs prevent cross-entity mixups at compile time. A DonorID can
// never be passed where a BankID is expected.
type (
	DonorID    uuid.UUID
	BankID     uuid.UUID
	DonationID uuid.UUID
	RequestID  uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id: must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be the nil UUID")
	}
	return u, nil
}

// ParseDonorID validates and returns a DonorID.
func ParseDonorID(s string) (DonorID, error) {
	u, err := parseUUID(s, "donor")
	return DonorID(u), err
}

// ParseBankID validates and returns a BankID.
func ParseBankID(s string) (BankID, error) {
	u, err := parseUUID(s, "bank")
	return BankID(u), err
}

// ParseDonationID validates and returns a DonationID.
func ParseDonationID(s string) (DonationID, error) {
	u, err := parseUUID(s, "donation")
	return DonationID(u), err
}

// ParseRequestID validates and returns a RequestID.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request")
	return RequestID(u), err
}

func (id DonorID) String() string    { return uuid.UUID(id).String() }
func (id BankID) String() string     { return uuid.UUID(id).String() }
func (id DonationID) String() string { return uuid.UUID(id).String() }
func (id RequestID) String() string  { return uuid.UUID(id).String() }

func (id DonorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BankID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
