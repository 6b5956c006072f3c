package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidAddress(t *testing.T) {
	valid := []string{"a@b.co", "first.last@example.org", "x+tag@sub.domain.io"}
	for _, addr := range valid {
		assert.True(t, ValidAddress(addr), addr)
	}

	invalid := []string{"", "plain", "@no-local.com", "no-domain@", "no-tld@host", "two@@at.com", "space in@addr.com"}
	for _, addr := range invalid {
		assert.False(t, ValidAddress(addr), addr)
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("9876543210"))
	assert.False(t, ValidPhone("12345"))
	assert.False(t, ValidPhone("98765432101"))
	assert.False(t, ValidPhone("98765-4321"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "j***@example.com", Mask("jane@example.com"))
	assert.Equal(t, "***", Mask("not-an-address"))
}
