package auth

import (
	"strings"
	"unicode"
)

const minPasswordLength = 8

// ValidatePassword checks a candidate password against the acceptance policy:
// at least 8 characters with at least one uppercase letter, one lowercase
// letter, one digit and one special character. It returns an empty string
// when the password is acceptable, otherwise a single human-readable reason
// listing everything that is missing.
func ValidatePassword(plaintext string) string {
	var missing []string

	if len(plaintext) < minPasswordLength {
		missing = append(missing, "at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper {
		missing = append(missing, "an uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "a lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "a digit")
	}
	if !hasSpecial {
		missing = append(missing, "a special character")
	}

	if len(missing) == 0 {
		return ""
	}
	return "password must contain " + strings.Join(missing, ", ")
}
