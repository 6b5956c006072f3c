// Package models defines the inventory record.
package models

import (
	"time"

	"bloodlink/pkg/domain"
)

// Record is one shelf entry: how many units of one blood group a bank
// holds. Records are created implicitly by the first donation of a group at
// a bank.
//
// Invariant: Units never goes negative. Decrements happen only through the
// store's conditional decrement, which re-checks availability atomically.
type Record struct {
	BankID     domain.BankID
	BloodGroup domain.BloodGroup
	Units      int
	UpdatedAt  time.Time
}
