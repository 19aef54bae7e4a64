package application

import (
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// SpecialCharacters is the literal set of characters counted as "special" by
// the strength classifier and drawn from by the password generator.
const SpecialCharacters = "!@#$%^&*()-_=+[]{}|;:,.<>?"

const (
	strongMinLength = 10
	mediumMinLength = 8
)

// ClassifyStrength maps a plaintext password to a strength label.
//
// Strong requires at least 10 characters with an uppercase letter, a lowercase
// letter, a digit and a special character. Medium requires at least 8
// characters and two of uppercase, lowercase and digit. Everything else is Weak.
// Only ASCII letters and digits and the SpecialCharacters set set a flag.
func ClassifyStrength(password string) model.PasswordStrength {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		case strings.ContainsRune(SpecialCharacters, ch):
			hasSpecial = true
		}
	}

	length := utf8.RuneCountInString(password)

	if length >= strongMinLength && hasUpper && hasLower && hasDigit && hasSpecial {
		return model.PasswordStrengthStrong
	}

	classes := 0
	for _, has := range []bool{hasUpper, hasLower, hasDigit} {
		if has {
			classes++
		}
	}
	if length >= mediumMinLength && classes >= 2 {
		return model.PasswordStrengthMedium
	}

	return model.PasswordStrengthWeak
}
