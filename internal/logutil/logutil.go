// Package logutil keeps credentials and oversized page dumps out of logs.
package logutil

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// IsSensitiveLogField returns true when a key likely contains sensitive data.
// Form field names like "password2" and "confirm_password" match too.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "passwd"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	case strings.Contains(normalized, "session"):
		return true
	default:
		return false
	}
}

// RedactField redacts a value when its field name looks sensitive.
func RedactField(key, value string) string {
	if IsSensitiveLogField(key) {
		return redacted
	}
	return value
}

// FormatFormForLog returns stable, redacted form text for logs.
func FormatFormForLog(form url.Values) string {
	if len(form) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := form[k]
		if len(values) == 0 {
			parts = append(parts, fmt.Sprintf("%s=<empty>", k))
			continue
		}
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = RedactField(k, v)
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, strings.Join(out, ", ")))
	}
	return strings.Join(parts, "; ")
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\r", "")
	normalized = strings.ReplaceAll(normalized, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}

// MaskEmail keeps the domain and first character of the local part.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return redacted
	}
	return email[:1] + "***" + email[at:]
}
