// Package config loads configuration for the acceptance harness and the
// reference todo server.
//
// Harness settings come from defaults, then an optional YAML file named by
// TODO_E2E_CONFIG, then environment variables. The server reads environment
// variables and CLI flags.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiman-zohra3/todo/internal/urlutil"
)

const (
	// ConfigFileEnv names the optional YAML overlay for harness settings.
	ConfigFileEnv = "TODO_E2E_CONFIG"

	defaultWaitTimeout       = 10 * time.Second
	defaultNavigationTimeout = 15 * time.Second
	defaultPollMin           = 100 * time.Millisecond
	defaultPollMax           = 500 * time.Millisecond
)

// Browsers the session manager knows how to launch.
var supportedBrowsers = map[string]bool{
	"chromium": true,
	"firefox":  true,
	"webkit":   true,
}

// FixtureUser is the shared account created once per run.
type FixtureUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Config holds harness configuration.
type Config struct {
	// Target application; empty means start the in-process reference server.
	BaseURL string `yaml:"base_url"`

	// Browser launch
	Browser         string        `yaml:"browser"`
	Headless        bool          `yaml:"headless"`
	DisableSandbox  bool          `yaml:"disable_sandbox"`
	ProfileRoot     string        `yaml:"profile_root"`
	SlowMo          time.Duration `yaml:"slow_mo"`
	InstallBrowsers bool          `yaml:"install_browsers"`

	// Synchronization
	WaitTimeout       time.Duration `yaml:"wait_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	PollMin           time.Duration `yaml:"poll_min"`
	PollMax           time.Duration `yaml:"poll_max"`

	// Outcome checking
	StrictOutcomes bool `yaml:"strict_outcomes"`

	Fixture FixtureUser `yaml:"fixture"`

	// Failure artifacts: local directory and/or S3 bucket.
	ArtifactsDir       string `yaml:"artifacts_dir"`
	ArtifactsBucket    string `yaml:"artifacts_bucket"`
	AWSEndpointS3      string `yaml:"aws_endpoint_s3"`
	AWSRegion          string `yaml:"aws_region"`
	AWSAccessKeyID     string `yaml:"-"`
	AWSSecretAccessKey string `yaml:"-"`

	LogLevel string `yaml:"log_level"`
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Defaults returns the harness configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Browser:           "chromium",
		Headless:          true,
		DisableSandbox:    true,
		WaitTimeout:       defaultWaitTimeout,
		NavigationTimeout: defaultNavigationTimeout,
		PollMin:           defaultPollMin,
		PollMax:           defaultPollMax,
		Fixture: FixtureUser{
			Name:     "Test User",
			Email:    "fixture-user@example.com",
			Password: "passrocky_123",
		},
		AWSRegion: "us-east-1",
		LogLevel:  "info",
	}
}

// LoadConfig loads harness configuration from defaults, the optional YAML file
// and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.BaseURL = urlutil.NormalizeBase(getEnvOrDefault("TODO_BASE_URL", cfg.BaseURL))
	cfg.Browser = strings.ToLower(getEnvOrDefault("TODO_BROWSER", cfg.Browser))
	cfg.Headless = parseBoolOrDefault("TODO_HEADLESS", cfg.Headless)
	cfg.DisableSandbox = parseBoolOrDefault("TODO_NO_SANDBOX", cfg.DisableSandbox)
	cfg.ProfileRoot = getEnvOrDefault("TODO_PROFILE_ROOT", cfg.ProfileRoot)
	cfg.SlowMo = parseDurationOrDefault("TODO_SLOWMO", cfg.SlowMo)
	cfg.InstallBrowsers = parseBoolOrDefault("TODO_INSTALL_BROWSERS", cfg.InstallBrowsers)

	cfg.WaitTimeout = parseDurationOrDefault("TODO_WAIT_TIMEOUT", cfg.WaitTimeout)
	cfg.NavigationTimeout = parseDurationOrDefault("TODO_NAVIGATION_TIMEOUT", cfg.NavigationTimeout)
	cfg.PollMin = parseDurationOrDefault("TODO_POLL_MIN", cfg.PollMin)
	cfg.PollMax = parseDurationOrDefault("TODO_POLL_MAX", cfg.PollMax)

	cfg.StrictOutcomes = parseBoolOrDefault("TODO_STRICT_OUTCOMES", cfg.StrictOutcomes)

	cfg.Fixture.Name = getEnvOrDefault("TODO_FIXTURE_NAME", cfg.Fixture.Name)
	cfg.Fixture.Email = getEnvOrDefault("TODO_FIXTURE_EMAIL", cfg.Fixture.Email)
	cfg.Fixture.Password = getEnvOrDefault("TODO_FIXTURE_PASSWORD", cfg.Fixture.Password)

	cfg.ArtifactsDir = getEnvOrDefault("TODO_ARTIFACTS_DIR", cfg.ArtifactsDir)
	cfg.ArtifactsBucket = getEnvOrDefault("TODO_ARTIFACTS_BUCKET", cfg.ArtifactsBucket)
	cfg.AWSEndpointS3 = strings.TrimSpace(getEnvOrDefault("AWS_ENDPOINT_URL_S3", cfg.AWSEndpointS3))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", cfg.AWSRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))

	cfg.LogLevel = getEnvOrDefault("TODO_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", ConfigFileEnv, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks that all harness settings are usable.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL != "" {
		if !urlutil.ValidBase(c.BaseURL) {
			errs = append(errs, "TODO_BASE_URL must be an absolute http(s) URL")
		}
	}

	if !supportedBrowsers[c.Browser] {
		errs = append(errs, fmt.Sprintf("TODO_BROWSER %q is not one of chromium, firefox, webkit", c.Browser))
	}

	if c.WaitTimeout <= 0 {
		errs = append(errs, "TODO_WAIT_TIMEOUT must be positive")
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, "TODO_NAVIGATION_TIMEOUT must be positive")
	}
	if c.PollMin <= 0 {
		errs = append(errs, "TODO_POLL_MIN must be positive")
	}
	if c.PollMax < c.PollMin {
		errs = append(errs, "TODO_POLL_MAX must not be smaller than TODO_POLL_MIN")
	}
	if c.SlowMo < 0 {
		errs = append(errs, "TODO_SLOWMO must not be negative")
	}

	if !strings.Contains(c.Fixture.Email, "@") {
		errs = append(errs, "TODO_FIXTURE_EMAIL must be an email address")
	}
	if len(c.Fixture.Password) < 4 {
		errs = append(errs, "TODO_FIXTURE_PASSWORD must be at least 4 characters")
	}

	if c.ArtifactsBucket != "" && c.AWSRegion == "" {
		errs = append(errs, "AWS_REGION is required when TODO_ARTIFACTS_BUCKET is set")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UsesReferenceServer reports whether the suite should start the in-process server.
func (c *Config) UsesReferenceServer() bool {
	return c.BaseURL == ""
}

// AppConfig holds reference server configuration.
type AppConfig struct {
	ListenAddr      string
	BaseURL         string
	DatabasePath    string
	DatabaseKey     string // optional, 64 hex characters enables SQLCipher encryption
	SessionDuration time.Duration
	LoginRPS        float64
	LoginBurst      int
	SecureCookies   bool
	TestMode        bool
	LogLevel        string
}

// ParseFlags parses server CLI flags from args.
func ParseFlags(args []string) (addr string, testMode bool, err error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&addr, "addr", "", "Listen address (default :5000, overrides LISTEN_ADDR env var)")
	fs.BoolVar(&testMode, "test", false, "Use a throwaway database and a fast password hasher")
	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	return addr, testMode, nil
}

// LoadAppConfig loads reference server configuration from environment variables
// and the parsed flag values.
func LoadAppConfig(addr string, testMode bool) (*AppConfig, error) {
	cfg := &AppConfig{TestMode: testMode}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":5000")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/todos.db")
	cfg.DatabaseKey = strings.TrimSpace(os.Getenv("DATABASE_KEY"))
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 24*time.Hour)
	cfg.LoginRPS = parseFloat64OrDefault("LOGIN_RPS", 5)
	cfg.LoginBurst = parseIntOrDefault("LOGIN_BURST", 20)
	cfg.SecureCookies = parseBoolOrDefault("SECURE_COOKIES", false)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all server settings are usable.
func (c *AppConfig) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if !c.TestMode && c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH is required (or use --test)")
	}
	if c.DatabaseKey != "" {
		if len(c.DatabaseKey) != 64 {
			errs = append(errs, "DATABASE_KEY must be 64 hex characters (32 bytes)")
		} else if _, err := hex.DecodeString(c.DatabaseKey); err != nil {
			errs = append(errs, "DATABASE_KEY must be hex encoded")
		}
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}
	if c.LoginRPS <= 0 {
		errs = append(errs, "LOGIN_RPS must be positive")
	}
	if c.LoginBurst <= 0 {
		errs = append(errs, "LOGIN_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the server configuration to stderr.
func (c *AppConfig) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "todo server starting...")
	if c.TestMode {
		fmt.Fprintln(os.Stderr, "  Mode:     test (--test)")
	}
	if c.DatabaseKey != "" {
		fmt.Fprintf(os.Stderr, "  Database: %s (encrypted)\n", c.DatabasePath)
	} else {
		fmt.Fprintf(os.Stderr, "  Database: %s\n", c.DatabasePath)
	}
	fmt.Fprintf(os.Stderr, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:     %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads harness configuration and panics if validation fails.
func MustLoadConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
