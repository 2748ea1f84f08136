package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestDefaults_Validate(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got: %v", err)
	}
	if !cfg.UsesReferenceServer() {
		t.Fatal("empty base URL should select the reference server")
	}
	if cfg.WaitTimeout != 10*time.Second {
		t.Fatalf("default wait timeout = %v, want 10s", cfg.WaitTimeout)
	}
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.BaseURL = "ftp://example.com"
	cfg.Browser = "netscape"
	cfg.WaitTimeout = 0
	cfg.PollMin = time.Second
	cfg.PollMax = time.Millisecond
	cfg.Fixture.Email = "nobody"
	cfg.Fixture.Password = "abc"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, expected := range []string{
		"TODO_BASE_URL",
		"TODO_BROWSER",
		"TODO_WAIT_TIMEOUT",
		"TODO_POLL_MAX",
		"TODO_FIXTURE_EMAIL",
		"TODO_FIXTURE_PASSWORD",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e2e.yaml")
	yamlText := `
base_url: http://yaml.example:3000
browser: firefox
wait_timeout: 4s
strict_outcomes: true
fixture:
  email: yaml-user@example.com
`
	if err := os.WriteFile(path, []byte(yamlText), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("TODO_BASE_URL", "http://env.example:5000/")
	t.Setenv("TODO_WAIT_TIMEOUT", "")
	t.Setenv("TODO_BROWSER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "http://env.example:5000" {
		t.Fatalf("BaseURL = %q, env should win and trailing slash be trimmed", cfg.BaseURL)
	}
	if cfg.Browser != "firefox" {
		t.Fatalf("Browser = %q, want firefox from yaml", cfg.Browser)
	}
	if cfg.WaitTimeout != 4*time.Second {
		t.Fatalf("WaitTimeout = %v, want 4s from yaml", cfg.WaitTimeout)
	}
	if !cfg.StrictOutcomes {
		t.Fatal("expected strict outcomes from yaml")
	}
	if cfg.Fixture.Email != "yaml-user@example.com" {
		t.Fatalf("fixture email = %q", cfg.Fixture.Email)
	}
	if cfg.Fixture.Password != Defaults().Fixture.Password {
		t.Fatal("fields absent from yaml should keep their defaults")
	}
}

func TestLoadConfig_MissingYAMLFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfig_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("TODO_BASE_URL", "")
	t.Setenv("TODO_BROWSER", "")
	t.Setenv("TODO_HEADLESS", "not-a-bool")
	t.Setenv("TODO_POLL_MIN", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Headless {
		t.Fatal("unparseable TODO_HEADLESS should keep default true")
	}
	if cfg.PollMin != 100*time.Millisecond {
		t.Fatalf("PollMin = %v, want default", cfg.PollMin)
	}
}

func testValidate_PollIntervalOrdering(t *rapid.T) {
	minMS := rapid.IntRange(1, 2000).Draw(t, "min_ms")
	maxMS := rapid.IntRange(1, 2000).Draw(t, "max_ms")

	cfg := Defaults()
	cfg.PollMin = time.Duration(minMS) * time.Millisecond
	cfg.PollMax = time.Duration(maxMS) * time.Millisecond

	err := cfg.Validate()
	if maxMS < minMS && err == nil {
		t.Fatalf("expected error for max %dms < min %dms", maxMS, minMS)
	}
	if maxMS >= minMS && err != nil {
		t.Fatalf("unexpected error for min %dms max %dms: %v", minMS, maxMS, err)
	}
}

func TestValidate_PollIntervalOrdering(t *testing.T) {
	rapid.Check(t, testValidate_PollIntervalOrdering)
}

func validAppConfig() AppConfig {
	return AppConfig{
		ListenAddr:      ":5000",
		DatabasePath:    "./data/todos.db",
		SessionDuration: time.Hour,
		LoginRPS:        5,
		LoginBurst:      20,
	}
}

func TestAppConfig_Validate(t *testing.T) {
	t.Parallel()
	cfg := validAppConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid app config, got: %v", err)
	}

	cfg.DatabaseKey = strings.Repeat("z", 64)
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATABASE_KEY") {
		t.Fatalf("expected DATABASE_KEY error, got: %v", err)
	}

	cfg.DatabaseKey = strings.Repeat("ab", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected hex key to validate, got: %v", err)
	}
}

func testAppConfig_RejectsBadKeyLengths(t *rapid.T) {
	n := rapid.IntRange(1, 128).Filter(func(n int) bool { return n != 64 }).Draw(t, "len")
	cfg := validAppConfig()
	cfg.DatabaseKey = strings.Repeat("a", n)
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for key length %d", n)
	}
}

func TestAppConfig_RejectsBadKeyLengths(t *testing.T) {
	rapid.Check(t, testAppConfig_RejectsBadKeyLengths)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	addr, testMode, err := ParseFlags([]string{"--addr", ":9090", "--test"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if addr != ":9090" || !testMode {
		t.Fatalf("got addr=%q test=%v", addr, testMode)
	}
}

func TestLoadAppConfig_FlagOverridesEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("BASE_URL", "")
	t.Setenv("DATABASE_KEY", "")

	cfg, err := LoadAppConfig(":8080", true)
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
}
