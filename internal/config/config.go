package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	minThresholdPct            = 0
	maxThresholdPct            = 100
	minNotificationTimeoutSecs = 0
	maxNotificationTimeoutSecs = 86400
	minPollingIntervalSecs     = 1
	maxPollingIntervalSecs     = 86400
)

type Config struct {
	Battery      BatteryConfig      `toml:"battery"`
	Notification NotificationConfig `toml:"notification"`
	Polling      PollingConfig      `toml:"polling"`
}

type BatteryConfig struct {
	Names        []string `toml:"names"`
	SysfsRoot    string   `toml:"sysfs_root"`
	ThresholdPct int      `toml:"threshold_pct"`
}

type NotificationConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Icon           string `toml:"icon"`
	AppName        string `toml:"app_name"`
}

type PollingConfig struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	OnResume        bool `toml:"on_resume"`
}

func DefaultConfig() *Config {
	return &Config{
		Battery: BatteryConfig{
			Names:        []string{"BAT1"},
			SysfsRoot:    "/sys",
			ThresholdPct: 20,
		},
		Notification: NotificationConfig{
			TimeoutSeconds: 10,
			Icon:           "battery",
			AppName:        "power-notify",
		},
		Polling: PollingConfig{
			IntervalSeconds: 180,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/power-notify/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "power-notify", "config.toml"), nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Decode into a fresh slice so a names list in the file replaces the
	// default instead of being merged into it.
	cfg.Battery.Names = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Battery.Names == nil {
		cfg.Battery.Names = DefaultConfig().Battery.Names
	}

	return NormalizeAndValidate(cfg)
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	var err error
	sanitized.Battery.Names, err = sanitizeNames("battery.names", cfg.Battery.Names)
	if err != nil {
		return nil, err
	}
	sanitized.Battery.SysfsRoot, err = sanitizePath("battery.sysfs_root", sanitized.Battery.SysfsRoot)
	if err != nil {
		return nil, err
	}
	sanitized.Notification.Icon, err = requireNonEmpty("notification.icon", sanitized.Notification.Icon)
	if err != nil {
		return nil, err
	}
	sanitized.Notification.AppName, err = requireNonEmpty("notification.app_name", sanitized.Notification.AppName)
	if err != nil {
		return nil, err
	}

	if err := validateRange("battery.threshold_pct", sanitized.Battery.ThresholdPct, minThresholdPct, maxThresholdPct); err != nil {
		return nil, err
	}
	if err := validateRange("notification.timeout_seconds", sanitized.Notification.TimeoutSeconds, minNotificationTimeoutSecs, maxNotificationTimeoutSecs); err != nil {
		return nil, err
	}
	if err := validateRange("polling.interval_seconds", sanitized.Polling.IntervalSeconds, minPollingIntervalSecs, maxPollingIntervalSecs); err != nil {
		return nil, err
	}

	return &sanitized, nil
}

// NotificationTimeout returns the critical-notification timeout; 0 means
// the notification stays until dismissed.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notification.TimeoutSeconds) * time.Second
}

// PollingInterval returns the delay between poll cycles.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// Encode writes cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config TOML: %w", err)
	}
	return data.Bytes(), nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	data, err := Encode(sanitized)
	if err != nil {
		return err
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

// sanitizeNames trims battery names and rejects anything that is not a
// single path element under class/power_supply.
func sanitizeNames(name string, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s must not be empty", name)
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, fmt.Errorf("%s must not contain empty names", name)
		}
		if trimmed == "." || trimmed == ".." || strings.ContainsRune(trimmed, '/') {
			return nil, fmt.Errorf("%s: invalid battery name %q", name, v)
		}
		names = append(names, trimmed)
	}
	return names, nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func requireNonEmpty(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	return trimmed, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
