package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ENVLOG_TEMPERATURE_MAX.
const EnvPrefix = "ENVLOG"

// Config holds per-project settings stored in .envlog/config.json.
type Config struct {
	Temperature     Thresholds `json:"temperature"`
	Humidity        Thresholds `json:"humidity"`
	ChartWindow     int        `json:"chart_window"`
	RefreshSeconds  int        `json:"refresh_seconds"`
	RequiredMonthly int        `json:"required_monthly"`
	TimeoutSeconds  int        `json:"timeout_seconds"`
	RateLimit       float64    `json:"rate_limit"`
	RateBurst       int        `json:"rate_burst"`
	Operator        string     `json:"operator,omitempty"`
}

// Thresholds bound the acceptable range for one measurement.
type Thresholds struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Optimal float64 `json:"optimal"`
}

// Defaults match the readings the monitoring sheet was designed around.
var defaultConfig = Config{
	Temperature:     Thresholds{Min: 15, Max: 25, Optimal: 20},
	Humidity:        Thresholds{Min: 40, Max: 70, Optimal: 55},
	ChartWindow:     24,
	RefreshSeconds:  60,
	RequiredMonthly: 62,
	TimeoutSeconds:  30,
	RateLimit:       2,
	RateBurst:       4,
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	c := defaultConfig
	return &c
}

// RefreshInterval is the auto-refresh period for the TUI.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// Timeout bounds a single endpoint call.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func applyDefaults(config *Config) {
	if config.Temperature == (Thresholds{}) {
		config.Temperature = defaultConfig.Temperature
	}
	if config.Humidity == (Thresholds{}) {
		config.Humidity = defaultConfig.Humidity
	}
	if config.ChartWindow <= 0 {
		config.ChartWindow = defaultConfig.ChartWindow
	}
	if config.RefreshSeconds <= 0 {
		config.RefreshSeconds = defaultConfig.RefreshSeconds
	}
	if config.RequiredMonthly <= 0 {
		config.RequiredMonthly = defaultConfig.RequiredMonthly
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaultConfig.TimeoutSeconds
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultConfig.RateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = defaultConfig.RateBurst
	}
}

// Validate rejects threshold ranges that cannot classify anything.
func (c *Config) Validate() error {
	for name, t := range map[string]Thresholds{"temperature": c.Temperature, "humidity": c.Humidity} {
		if t.Min >= t.Max {
			return fmt.Errorf("%s.min (%g) must be below %s.max (%g)", name, t.Min, name, t.Max)
		}
		if t.Optimal < t.Min || t.Optimal > t.Max {
			return fmt.Errorf("%s.optimal (%g) must be within [%g, %g]", name, t.Optimal, t.Min, t.Max)
		}
	}
	if c.Humidity.Min < 0 || c.Humidity.Max > 100 {
		return fmt.Errorf("humidity thresholds must be within 0-100")
	}
	return nil
}

// LoadConfig reads .envlog/config.json from the project data directory.
// Missing keys fall back to defaults and every key can be overridden from
// the environment (ENVLOG_ plus the key path with dots as underscores).
func LoadConfig() (*Config, error) {
	dataDir, err := FindDataDir()
	if err != nil {
		return nil, err
	}
	return loadConfigAt(dataDir)
}

// LoadConfigAt reads config.json from dataDir, used when ENVLOG_DB points
// outside a project. A missing file yields the defaults.
func LoadConfigAt(dataDir string) (*Config, error) {
	return loadConfigAt(dataDir)
}

func loadConfigAt(dataDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dataDir, ConfigFile))
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := DefaultConfig()
	fields := GetConfigFields(config)
	for _, f := range fields {
		_ = v.BindEnv(f.Path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(filepath.Join(dataDir, ConfigFile)); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for _, f := range fields {
		if !v.IsSet(f.Path) {
			continue
		}
		if err := SetConfigField(config, f.Path, v.GetString(f.Path)); err != nil {
			return nil, fmt.Errorf("config %s: %w", f.Path, err)
		}
	}

	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func saveConfigAt(dataDir string, config *Config) error {
	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	configPath := filepath.Join(dataDir, ConfigFile)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveConfig writes the project config to .envlog/config.json.
func SaveConfig(config *Config) error {
	dataDir, err := FindDataDir()
	if err != nil {
		return err
	}
	return saveConfigAt(dataDir, config)
}

// InitProject creates the .envlog directory in the current directory and
// writes a default config unless one exists. Returns the database path.
func InitProject() (string, error) {
	p, err := ProjectHere()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.Templates(), 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DataDir, err)
	}

	if _, err := os.Stat(p.Config()); os.IsNotExist(err) {
		if err := saveConfigAt(p.Dir, DefaultConfig()); err != nil {
			return "", err
		}
	}

	return p.DB(), nil
}
