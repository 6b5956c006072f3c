// Package models defines the blood bank aggregate.
package models

import (
	"strings"
	"time"

	"bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

// Bank is a blood bank holding typed inventory. Banks are created by
// operators directly; no verification gate applies.
type Bank struct {
	ID        domain.BankID
	Name      string
	Address   string
	Phone     string
	City      string
	Location  domain.Coordinates
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BankParams carries raw input for constructing or updating a bank.
type BankParams struct {
	Name    string
	Address string
	Phone   string
	City    string
	Lat     float64
	Lon     float64
}

// NewBank validates params and constructs a bank.
func NewBank(id domain.BankID, p BankParams, now time.Time) (*Bank, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "bank name is required")
	}
	city := strings.TrimSpace(p.City)
	if city == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "bank city is required")
	}
	if !email.ValidPhone(p.Phone) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "phone must be a 10-digit number")
	}
	loc, err := domain.NewCoordinates(p.Lat, p.Lon)
	if err != nil {
		return nil, err
	}

	return &Bank{
		ID:        id,
		Name:      name,
		Address:   strings.TrimSpace(p.Address),
		Phone:     p.Phone,
		City:      city,
		Location:  loc,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
