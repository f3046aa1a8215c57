package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values for one run of the bot.
type Config struct {
	Email      string `mapstructure:"EMAIL"`
	Password   string `mapstructure:"PASSWORD"`
	ScheduleID string `mapstructure:"SCHEDULE_ID"`
	FacilityID string `mapstructure:"FACILITY_ID"`
	Locale     string `mapstructure:"LOCALE"`

	// Seconds between poll cycles.
	RetryTimeout int `mapstructure:"RETRY_TIMEOUT"`

	BaseHost string `mapstructure:"BASE_HOST"`

	// Optional SOCKS5 proxy list file, one URL per line. Empty disables
	// proxying.
	ProxyFile string `mapstructure:"PROXY_FILE"`

	// Dial TLS with a browser fingerprint instead of Go's default stack.
	FingerprintTLS bool `mapstructure:"FINGERPRINT_TLS"`

	// Optional JSON-line file recording every booking attempt.
	HistoryFile string `mapstructure:"HISTORY_FILE"`

	// Extra wait after 403/429 signals before re-authenticating.
	BanCooldownSeconds int `mapstructure:"BAN_COOLDOWN_SECONDS"`
}

// Load reads configuration from the environment, falling back to an optional
// config.yaml in the working directory.
func Load() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("EMAIL", "")
	viper.SetDefault("PASSWORD", "")
	viper.SetDefault("SCHEDULE_ID", "")
	viper.SetDefault("FACILITY_ID", "")
	viper.SetDefault("LOCALE", "")
	viper.SetDefault("RETRY_TIMEOUT", 3)
	viper.SetDefault("BASE_HOST", "https://ais.usvisa-info.com")
	viper.SetDefault("PROXY_FILE", "")
	viper.SetDefault("FINGERPRINT_TLS", false)
	viper.SetDefault("HISTORY_FILE", "")
	viper.SetDefault("BAN_COOLDOWN_SECONDS", 300)

	// Environment-only operation is fine; the file is a convenience.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var missing []string
	for key, val := range map[string]string{
		"EMAIL":       cfg.Email,
		"PASSWORD":    cfg.Password,
		"SCHEDULE_ID": cfg.ScheduleID,
		"FACILITY_ID": cfg.FacilityID,
		"LOCALE":      cfg.Locale,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 3
	}
	return cfg, nil
}
