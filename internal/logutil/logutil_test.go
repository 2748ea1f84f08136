package logutil

import (
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"password", "password2", "confirm_password", "Session-Id", "Cookie", "api_token"} {
		if !IsSensitiveLogField(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"name", "email", "title", "duedate", "details"} {
		if IsSensitiveLogField(key) {
			t.Errorf("expected %q not to be sensitive", key)
		}
	}
}

func TestFormatFormForLog_RedactsPasswords(t *testing.T) {
	t.Parallel()
	form := url.Values{
		"email":     {"a@example.com"},
		"password":  {"hunter22"},
		"password2": {"hunter22"},
	}
	got := FormatFormForLog(form)
	if strings.Contains(got, "hunter22") {
		t.Fatalf("password leaked into log text: %s", got)
	}
	if got != `email="a@example.com"; password="[REDACTED]"; password2="[REDACTED]"` {
		t.Fatalf("unexpected format: %s", got)
	}
	if FormatFormForLog(nil) != "{}" {
		t.Fatal("empty form should render as {}")
	}
}

func TestTruncateForLog_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.String().Draw(t, "value")
		limit := rapid.IntRange(1, 64).Draw(t, "limit")

		got := TruncateForLog(value, limit)
		if strings.Contains(got, "\n") {
			t.Fatalf("output must be single-line: %q", got)
		}
		if len(got) > limit+len("... [truncated]") {
			t.Fatalf("output too long: %d > %d", len(got), limit)
		}
	})
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()
	if got := MaskEmail("ayesha@example.com"); got != "a***@example.com" {
		t.Fatalf("got %q", got)
	}
	if got := MaskEmail("nobody"); got != "[REDACTED]" {
		t.Fatalf("got %q", got)
	}
}
