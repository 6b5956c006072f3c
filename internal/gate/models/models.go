package models

import "time"

// Challenge is an issued one-time code bound to an email and an action key.
// Challenges are ephemeral: they live only in the gate's store and are
// consumed on terminal verification outcomes (match or expiry).
//
// Invariants:
//   - At most one live challenge exists per action key; issuing a new one
//     overwrites the prior (last-writer-wins).
//   - A challenge is single-use: a successful confirm deletes it.
//   - Expiry is evaluated lazily at confirm time, never by a timer.
type Challenge struct {
	ActionKey string
	Code      string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the challenge is past its TTL at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Verification records a confirmed email for an action key. It is valid
// for exactly one subsequent mutating call; consuming it deletes it.
type Verification struct {
	ActionKey string
	Email     string
}

// Action keys bind a challenge to the mutation it authorizes. Keys embed
// the email so a changed address after verification can never redeem a
// verification issued for the old one.
const (
	actionDonorRegistration = "donor-registration"
	actionRequestCreation   = "request-creation"
)

// DonorRegistrationKey returns the action key for registering a donor with
// the given contact email.
func DonorRegistrationKey(email string) string {
	return actionDonorRegistration + ":" + email
}

// RequestCreationKey returns the action key for creating a request with
// the given contact email.
func RequestCreationKey(email string) string {
	return actionRequestCreation + ":" + email
}
