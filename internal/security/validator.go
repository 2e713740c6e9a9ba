package security

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"dappbridge/internal/constants"
)

var (
	sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ValidateSessionID accepts caller-assigned ids that are safe to use in
// URLs, Redis keys and file names.
func ValidateSessionID(id string) bool {
	if id == "" || len(id) > constants.MaxSessionIDLength {
		return false
	}
	if id == "." || id == ".." {
		return false
	}
	return sessionIDRegex.MatchString(id)
}

// ValidateExternalURL allows only links that are safe to hand to the
// desktop's default handler.
func ValidateExternalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto":
		return u.Opaque != ""
	default:
		return false
	}
}

// ValidateOrigin checks if request origin is allowed
func ValidateOrigin(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // No origin header = same origin or direct request
	}

	if len(allowedOrigins) == 0 {
		return true // Allow all if no restriction set
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// SanitizeInput removes potentially dangerous characters
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	// Remove control characters except newline/tab
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' || r == '\r' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
