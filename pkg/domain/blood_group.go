package domain

import dErrors "bloodlink/pkg/domain-errors"

// BloodGroup is one of the eight ABO/Rh combinations. Matching throughout
// the system is exact: no cross-type compatibility substitution.
//
// Invariant: the value must be one of the eight supported groups.
type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
)

// BloodGroups lists all supported groups in a stable order.
var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupOPos, BloodGroupONeg,
	BloodGroupABPos, BloodGroupABNeg,
}

// ParseBloodGroup validates and returns a BloodGroup. Use at trust
// boundaries; direct casting bypasses the allowlist.
func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(s)
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid blood group: "+s)
	}
	return g, nil
}

// IsValid reports whether the group is one of the eight supported values.
func (g BloodGroup) IsValid() bool {
	switch g {
	case BloodGroupAPos, BloodGroupANeg, BloodGroupBPos, BloodGroupBNeg,
		BloodGroupOPos, BloodGroupONeg, BloodGroupABPos, BloodGroupABNeg:
		return true
	}
	return false
}

func (g BloodGroup) String() string {
	return string(g)
}
