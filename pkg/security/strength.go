// Package security provides password health analysis for vault items.
package security

import "strings"

// Strength represents the strength level of a password.
type Strength int

const (
	// StrengthWeak indicates an insecure password (less than 8 characters).
	StrengthWeak Strength = iota
	// StrengthFair indicates a minimally acceptable password.
	StrengthFair
	// StrengthGood indicates a good password.
	StrengthGood
	// StrengthStrong indicates a strong password.
	StrengthStrong
)

// String returns a human-readable representation of the strength.
func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "Weak"
	case StrengthFair:
		return "Fair"
	case StrengthGood:
		return "Good"
	case StrengthStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// PasswordStrength evaluates a human-chosen password.
// Length is the primary factor per NIST SP 800-63B: no composition rules,
// focus on length.
func PasswordStrength(value string) Strength {
	switch length := len(value); {
	case length >= 20:
		return StrengthStrong
	case length >= 14:
		return StrengthGood
	case length >= 8:
		return StrengthFair
	default:
		return StrengthWeak
	}
}

// passwordKeys are the field keys treated as passwords across the preset
// categories.
var passwordKeys = map[string]bool{
	"password":   true,
	"pin":        false, // short by nature, length scoring does not apply
	"cvv":        false, // short by nature, length scoring does not apply
	"totpSecret": false, // machine-generated, not user-chosen
}

// IsPasswordField reports whether a field key or label names a user-chosen
// password worth scoring.
func IsPasswordField(key, label string) bool {
	if v, ok := passwordKeys[key]; ok {
		return v
	}
	lower := strings.ToLower(label)
	for _, name := range []string{"password", "passphrase", "pass"} {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
