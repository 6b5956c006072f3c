// Package models defines the donation record.
package models

import (
	"time"

	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Donation is an immutable record of one donation visit. The blood group
// is copied from the donor at logging time so the record stays truthful if
// the donor record is later edited.
type Donation struct {
	ID         domain.DonationID
	DonorID    domain.DonorID
	BankID     domain.BankID
	BloodGroup domain.BloodGroup
	Units      int
	Hemoglobin float64
	DonatedAt  time.Time
	CreatedAt  time.Time
}

// DonationParams carries raw input for logging a donation.
type DonationParams struct {
	DonorID    string
	BankID     string
	Units      int
	Hemoglobin float64
	DonatedAt  *time.Time // defaults to now
}

const (
	// A single visit yields between 1 and 5 units.
	MinUnits = 1
	MaxUnits = 5
)

// Validate checks the unit and hemoglobin bounds that do not depend on
// other aggregates. Donor and bank existence is the service's job.
func (p DonationParams) Validate() error {
	if p.Units < MinUnits || p.Units > MaxUnits {
		return dErrors.New(dErrors.CodeBadRequest, "units must be between 1 and 5")
	}
	if p.Hemoglobin < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "hemoglobin cannot be negative")
	}
	return nil
}
