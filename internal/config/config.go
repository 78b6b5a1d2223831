package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds client and tooling configuration
type Config struct {
	SiteID   string
	APIHost  string
	DataDir  string
	Port     string // dev sink listen port
	Heatmaps bool
}

// Load loads configuration from multiple sources with priority:
// 1. Command flags (via LoadWithOverrides)
// 2. Config file (~/.config/seentics/seentics.toml or ./seentics.toml)
// 3. Environment variables
func Load() (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, "", "", ""), nil
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(siteID, apiHost, dataDir string) (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, siteID, apiHost, dataDir), nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("seentics")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// Use XDG Base Directory specification
	// Manual implementation to support testing (xdg library caches at init)
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "seentics"))
	}

	return v
}

func buildConfig(v *viper.Viper, overrideSiteID, overrideAPIHost, overrideDataDir string) *Config {
	cfg := &Config{
		Port:    "8090",
		DataDir: "./data",
	}

	// Apply config file values
	if v.IsSet("site_id") {
		cfg.SiteID = v.GetString("site_id")
	}
	if v.IsSet("api_host") {
		cfg.APIHost = v.GetString("api_host")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("heatmaps") {
		cfg.Heatmaps = v.GetBool("heatmaps")
	}

	// Environment fallback (only if not configured)
	if cfg.SiteID == "" {
		cfg.SiteID = os.Getenv("SEENTICS_SITE_ID")
	}
	if cfg.APIHost == "" {
		cfg.APIHost = os.Getenv("SEENTICS_API_HOST")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("data_dir") {
		if envDataDir := os.Getenv("DATA_DIR"); envDataDir != "" {
			cfg.DataDir = envDataDir
		}
	}
	if !v.IsSet("heatmaps") {
		if envHeatmaps := os.Getenv("SEENTICS_HEATMAPS"); envHeatmaps != "" {
			cfg.Heatmaps = envHeatmaps == "true"
		}
	}

	// Apply overrides (flags) last
	if overrideSiteID != "" {
		cfg.SiteID = overrideSiteID
	}
	if overrideAPIHost != "" {
		cfg.APIHost = overrideAPIHost
	}
	if overrideDataDir != "" {
		cfg.DataDir = overrideDataDir
	}

	if cfg.APIHost != "" {
		if normalized, err := SanitizeAPIHost(cfg.APIHost); err == nil {
			cfg.APIHost = normalized
		}
	}

	return cfg
}
