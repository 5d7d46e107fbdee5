package validation

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates such as renewal_date.
const DateLayout = "2006-01-02"

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UUIDRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// ISO 4217 codes are three uppercase letters
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// IsValidURL accepts absolute http and https URLs.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func IsValidCurrency(code string) bool {
	return currencyRegex.MatchString(code)
}

// ParseDate parses a YYYY-MM-DD date to UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsValidAmount accepts non-negative money amounts with at most two decimals.
func IsValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

// OneOf reports whether v is one of allowed.
func OneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// IsValidPassword checks password length
func IsValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 128 {
		return false, "Password must be at most 128 characters"
	}
	return true, ""
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// TruncateString truncates a string to maxLen runes
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// ValidateCredentialFields checks the secret map of a credential. Every
// credential needs at least one non-empty field; some types need specific ones.
func ValidateCredentialFields(credentialType string, fields map[string]any) map[string]string {
	errors := make(map[string]string)

	if len(fields) == 0 {
		errors["credentials"] = "At least one credential field is required"
		return errors
	}

	required := map[string][]string{
		"password": {"password"},
		"oauth":    {"client_id", "client_secret"},
	}[credentialType]

	for _, field := range required {
		v, ok := fields[field]
		if s, isString := v.(string); !ok || (isString && s == "") {
			errors[field] = field + " is required for " + credentialType + " credentials"
		}
	}

	return errors
}
