// Package email holds contact-detail validation shared by the gate and the
// donor/request services.
package email

import (
	"regexp"
	"strings"
)

// The gate only needs a syntactic ownership check; real ownership is proven
// by the one-time code round trip.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidAddress reports whether s looks like an email address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidPhone reports whether s is a 10-digit phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Mask redacts the local part of an address for log output, keeping the
// first character and the domain.
func Mask(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
