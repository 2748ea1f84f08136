package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const profileDirPattern = "todo-e2e-profile-*"

// newProfileDir creates a fresh profile directory so concurrent sessions never
// share browser lock files.
func newProfileDir(root string) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", fmt.Errorf("create profile root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, profileDirPattern)
	if err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	return dir, nil
}

// chromiumPreferences is the subset of Chromium's Default/Preferences file
// that turns off password saving and notification prompts.
func chromiumPreferences(cfg LaunchConfig) map[string]any {
	prefs := map[string]any{}
	if cfg.DisableCredentialPrompts {
		prefs["credentials_enable_service"] = false
		prefs["profile"] = map[string]any{
			"password_manager_enabled": false,
		}
	}
	if cfg.DisableNotifications {
		profile, _ := prefs["profile"].(map[string]any)
		if profile == nil {
			profile = map[string]any{}
			prefs["profile"] = profile
		}
		// 2 = block
		profile["default_content_setting_values"] = map[string]any{
			"notifications": 2,
		}
	}
	return prefs
}

func writeChromiumPreferences(profileDir string, cfg LaunchConfig) error {
	prefs := chromiumPreferences(cfg)
	if len(prefs) == 0 {
		return nil
	}
	defaultDir := filepath.Join(profileDir, "Default")
	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		return fmt.Errorf("create Default profile: %w", err)
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(filepath.Join(defaultDir, "Preferences"), data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// firefoxPreferences maps the same prompts to Firefox user prefs.
func firefoxPreferences(cfg LaunchConfig) map[string]any {
	prefs := map[string]any{}
	if cfg.DisableCredentialPrompts {
		prefs["signon.rememberSignons"] = false
		prefs["signon.autofillForms"] = false
	}
	if cfg.DisableNotifications {
		prefs["dom.webnotifications.enabled"] = false
		prefs["permissions.default.desktop-notification"] = 2
	}
	return prefs
}

// chromiumArgs returns the command line flags for a chromium session.
func chromiumArgs(cfg LaunchConfig) []string {
	args := []string{
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--disable-blink-features=AutomationControlled",
		"--disable-extensions",
		"--disable-infobars",
	}
	if cfg.DisableSandbox {
		args = append(args, "--no-sandbox")
	}
	if cfg.DisableNotifications {
		args = append(args, "--disable-notifications")
	}
	if cfg.DisableCredentialPrompts {
		args = append(args, "--password-store=basic")
	}
	return append(args, cfg.ExtraArgs...)
}
