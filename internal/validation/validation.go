package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEmail is returned when an address does not parse as a bare email
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidColor is returned when a label color is not a #RRGGBB value
	ErrInvalidColor = errors.New("color must be a hex value like #1a2b3c")

	// ErrNameRequired is returned when a project or label name is blank
	ErrNameRequired = errors.New("name is required")

	// ErrNameTooLong is returned when a name exceeds 200 characters
	ErrNameTooLong = errors.New("name must be at most 200 characters")

	// ErrPasswordTooShort is returned for passwords under 8 characters
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")

	colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// NormalizeEmail trims and lowercases an email address. Emails compare
// case-insensitively everywhere in the service.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address with a domain part. Display-name
// forms such as "Bob <bob@x.com>" are rejected.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateColor checks a #RRGGBB label color.
func ValidateColor(color string) error {
	if !colorRegex.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}

// ValidateName checks project and label names
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if len([]rune(name)) > 200 {
		return ErrNameTooLong
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}
