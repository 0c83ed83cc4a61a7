package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr         = ":8099"
	defaultDBPath           = "/data/connectivity_monitor.db"
	defaultFrontendDist     = "/app/frontend/dist"
	defaultAddonOptionsPath = "/data/options.json"
	defaultHABaseURL        = "http://supervisor/core"
	defaultProbeTarget      = "1.1.1.1:53"
	defaultProbeTimeout     = 4 * time.Second
	defaultRefreshInterval  = 30 * time.Second
	defaultDebounce         = 500 * time.Millisecond
	defaultAlertTimeout     = 10 * time.Second
	defaultJournalRetention = 5000
)

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr         string
	DBPath           string
	FrontendDist     string
	AddonOptionsPath string
	ConfigPath       string
	LogLevel         slog.Level

	HABaseURL       string
	SupervisorToken string
	NotifyHA        bool

	AllowSSID        bool
	ProbeTarget      string
	ProbeTimeout     time.Duration
	RefreshInterval  time.Duration
	Debounce         time.Duration
	AlertTimeout     time.Duration
	OnlyInterfaces   []string
	IgnoreInterfaces []string
	JournalRetention int
}

// fileOptions is the shape shared by the add-on options.json and the YAML
// config file. Unset fields keep the environment value.
type fileOptions struct {
	LogLevel         *string  `json:"log_level" yaml:"log_level"`
	AllowSSID        *bool    `json:"allow_ssid" yaml:"allow_ssid"`
	NotifyHA         *bool    `json:"notify_home_assistant" yaml:"notify_home_assistant"`
	ProbeTarget      *string  `json:"probe_target" yaml:"probe_target"`
	ProbeTimeout     *string  `json:"probe_timeout" yaml:"probe_timeout"`
	RefreshInterval  *string  `json:"refresh_interval" yaml:"refresh_interval"`
	Debounce         *string  `json:"debounce" yaml:"debounce"`
	OnlyInterfaces   []string `json:"only_interfaces" yaml:"only_interfaces"`
	IgnoreInterfaces []string `json:"ignore_interfaces" yaml:"ignore_interfaces"`
	JournalRetention *int     `json:"journal_retention" yaml:"journal_retention"`
}

// Load builds Config from environment variables using stable defaults, then
// applies add-on options and the optional YAML file on top.
func Load() (Config, error) {
	cfg := fromEnv()

	if err := cfg.applyFile(cfg.AddonOptionsPath, json.Unmarshal); err != nil {
		return cfg, fmt.Errorf("addon options %s: %w", cfg.AddonOptionsPath, err)
	}
	if cfg.ConfigPath != "" {
		if err := cfg.applyFile(cfg.ConfigPath, yaml.Unmarshal); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", cfg.ConfigPath, err)
		}
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		FrontendDist:     getenv("FRONTEND_DIST", defaultFrontendDist),
		AddonOptionsPath: getenv("ADDON_OPTIONS_PATH", defaultAddonOptionsPath),
		ConfigPath:       getenv("CONFIG_PATH", ""),
		LogLevel:         parseLogLevel(getenv("LOG_LEVEL", "info")),
		HABaseURL:        getenv("HA_BASE_URL", defaultHABaseURL),
		SupervisorToken:  getenv("SUPERVISOR_TOKEN", ""),
		NotifyHA:         parseBool("NOTIFY_HOME_ASSISTANT", true),
		AllowSSID:        parseBool("ALLOW_SSID", true),
		ProbeTarget:      getenv("PROBE_TARGET", defaultProbeTarget),
		ProbeTimeout:     parseDuration("PROBE_TIMEOUT", defaultProbeTimeout),
		RefreshInterval:  parseDuration("REFRESH_INTERVAL", defaultRefreshInterval),
		Debounce:         parseDuration("DEBOUNCE", defaultDebounce),
		AlertTimeout:     parseDuration("ALERT_TIMEOUT", defaultAlertTimeout),
		OnlyInterfaces:   parseList(getenv("ONLY_INTERFACES", "")),
		IgnoreInterfaces: parseList(getenv("IGNORE_INTERFACES", "")),
		JournalRetention: parseInt("JOURNAL_RETENTION", defaultJournalRetention),
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

// HANotificationsEnabled reports whether the Home Assistant notifier can run.
func (c Config) HANotificationsEnabled() bool {
	return c.NotifyHA && c.SupervisorToken != ""
}

func (c *Config) applyFile(path string, unmarshal func([]byte, any) error) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var opts fileOptions
	if err := unmarshal(raw, &opts); err != nil {
		return err
	}
	return c.apply(opts)
}

func (c *Config) apply(opts fileOptions) error {
	if opts.LogLevel != nil {
		c.LogLevel = parseLogLevel(*opts.LogLevel)
	}
	if opts.AllowSSID != nil {
		c.AllowSSID = *opts.AllowSSID
	}
	if opts.NotifyHA != nil {
		c.NotifyHA = *opts.NotifyHA
	}
	if opts.ProbeTarget != nil {
		c.ProbeTarget = strings.TrimSpace(*opts.ProbeTarget)
	}
	for _, d := range []struct {
		name   string
		raw    *string
		target *time.Duration
	}{
		{"probe_timeout", opts.ProbeTimeout, &c.ProbeTimeout},
		{"refresh_interval", opts.RefreshInterval, &c.RefreshInterval},
		{"debounce", opts.Debounce, &c.Debounce},
	} {
		if d.raw == nil {
			continue
		}
		value, err := time.ParseDuration(strings.TrimSpace(*d.raw))
		if err != nil || value <= 0 {
			return fmt.Errorf("invalid %s %q", d.name, *d.raw)
		}
		*d.target = value
	}
	if opts.OnlyInterfaces != nil {
		c.OnlyInterfaces = cleanList(opts.OnlyInterfaces)
	}
	if opts.IgnoreInterfaces != nil {
		c.IgnoreInterfaces = cleanList(opts.IgnoreInterfaces)
	}
	if opts.JournalRetention != nil && *opts.JournalRetention > 0 {
		c.JournalRetention = *opts.JournalRetention
	}
	return nil
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseBool(key string, fallback bool) bool {
	switch strings.ToLower(getenv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(key string, fallback int) int {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	return cleanList(strings.Split(raw, ","))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
