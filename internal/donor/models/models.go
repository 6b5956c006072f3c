// Package models defines the donor aggregate and its construction
// invariants.
package models

import (
	"strings"
	"time"

	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

// Donor is a registered blood donor. LastDonationDate is nil until the
// first donation is logged.
type Donor struct {
	ID               domain.DonorID
	Name             string
	Gender           string
	DateOfBirth      *time.Time
	BloodGroup       domain.BloodGroup
	Phone            string
	Email            string
	City             string
	Location         domain.Coordinates
	LastDonationDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DonorParams carries raw input for constructing or updating a donor.
// Validation happens in NewDonor, not in handlers.
type DonorParams struct {
	Name        string
	Gender      string
	DateOfBirth *time.Time
	BloodGroup  string
	Phone       string
	Email       string
	City        string
	Lat         float64
	Lon         float64
}

// NewDonor validates params and constructs a donor.
func NewDonor(id domain.DonorID, p DonorParams, now time.Time) (*Donor, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "donor name is required")
	}
	city := strings.TrimSpace(p.City)
	if city == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "donor city is required")
	}
	if !email.ValidPhone(p.Phone) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "phone must be a 10-digit number")
	}
	if !email.ValidAddress(p.Email) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email address")
	}
	group, err := domain.ParseBloodGroup(p.BloodGroup)
	if err != nil {
		return nil, err
	}
	loc, err := domain.NewCoordinates(p.Lat, p.Lon)
	if err != nil {
		return nil, err
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(now) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "date of birth cannot be in the future")
	}

	return &Donor{
		ID:          id,
		Name:        name,
		Gender:      strings.TrimSpace(p.Gender),
		DateOfBirth: p.DateOfBirth,
		BloodGroup:  group,
		Phone:       p.Phone,
		Email:       p.Email,
		City:        city,
		Location:    loc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Filter narrows donor listings. Zero values match everything.
type Filter struct {
	Name       string // case-insensitive substring
	City       string // exact, case-insensitive
	BloodGroup *domain.BloodGroup
}

// Matches reports whether the donor passes the filter. Shared by the memory
// store; the postgres store expresses the same predicate in SQL.
func (f Filter) Matches(d *Donor) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.City != "" && !strings.EqualFold(d.City, f.City) {
		return false
	}
	if f.BloodGroup != nil && d.BloodGroup != *f.BloodGroup {
		return false
	}
	return true
}

// InactiveSince reports whether the donor has not donated since the cutoff
// (donors who never donated count as inactive).
func (d *Donor) InactiveSince(cutoff time.Time) bool {
	return d.LastDonationDate == nil || d.LastDonationDate.Before(cutoff)
}
