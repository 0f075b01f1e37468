package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"  a@x.com ", true},
		{"first.last+tag@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"a@localhost", false},
		{"Bob <bob@x.com>", false},
		{strings.Repeat("a", 250) + "@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidEmail)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestValidateColor(t *testing.T) {
	require.NoError(t, ValidateColor("#1a2B3c"))
	require.ErrorIs(t, ValidateColor("1a2b3c"), ErrInvalidColor)
	require.ErrorIs(t, ValidateColor("#abc"), ErrInvalidColor)
	require.ErrorIs(t, ValidateColor("#gggggg"), ErrInvalidColor)
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("Alpha"))
	require.ErrorIs(t, ValidateName("   "), ErrNameRequired)
	require.ErrorIs(t, ValidateName(strings.Repeat("ż", 201)), ErrNameTooLong)
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("12345678"))
	require.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)
}
