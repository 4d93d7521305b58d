// Package config loads the two halves of runtime configuration: credentials
// from the environment (optionally seeded from a .env file) and tunables from
// a YAML settings file with sensible defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Env holds backend credentials and the signed-in customer's identity.
type Env struct {
	SupabaseURL     string `env:"SUPABASE_URL,required"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY,required"`

	CustomerEmail    string `env:"CUSTOMER_EMAIL,required"`
	CustomerPassword string `env:"CUSTOMER_PASSWORD"`
}

// LoadEnv reads a .env file if present and decodes the environment. A missing
// .env file is not an error; missing required variables are.
func LoadEnv() (*Env, error) {
	_ = godotenv.Load()

	var e Env
	if err := envdecode.StrictDecode(&e); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &e, nil
}

// Duration is a time.Duration that unmarshals from YAML strings like "300ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GovernorSettings tunes the request governor.
type GovernorSettings struct {
	MaxRequestsPerWindow int      `yaml:"max_requests_per_window"`
	Window               Duration `yaml:"window"`
	RequestDelay         Duration `yaml:"request_delay"`
}

// ReviewSettings tunes the review prompter.
type ReviewSettings struct {
	PollInterval  Duration `yaml:"poll_interval"`
	ReviewAfter   Duration `yaml:"review_after"`
	CouponPercent int      `yaml:"coupon_percent"`
}

// DeliverySettings tunes position lookups for delivery estimates.
type DeliverySettings struct {
	GeolocateEndpoint string `yaml:"geolocate_endpoint"`
}

// Settings are the tunables read from the settings file.
type Settings struct {
	LogLevel string           `yaml:"log_level"`
	Governor GovernorSettings `yaml:"governor"`
	Reviews  ReviewSettings   `yaml:"reviews"`
	Delivery DeliverySettings `yaml:"delivery"`
}

// DefaultSettings returns the settings used when no file overrides them.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel: "info",
		Governor: GovernorSettings{
			MaxRequestsPerWindow: 3,
			Window:               Duration(2 * time.Second),
			RequestDelay:         Duration(300 * time.Millisecond),
		},
		Reviews: ReviewSettings{
			PollInterval:  Duration(10 * time.Minute),
			ReviewAfter:   Duration(time.Hour),
			CouponPercent: 10,
		},
		Delivery: DeliverySettings{
			GeolocateEndpoint: "https://ipapi.co/json/",
		},
	}
}

// LoadSettings loads settings from config/settings.yaml.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(filepath.Join("config", "settings.yaml"))
}

// LoadSettingsFromPath loads settings from a specific path. Fields absent from
// the file keep their defaults.
func LoadSettingsFromPath(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if cfg.Governor.MaxRequestsPerWindow <= 0 {
		return nil, fmt.Errorf("governor: max_requests_per_window must be positive")
	}
	if cfg.Reviews.CouponPercent < 0 || cfg.Reviews.CouponPercent > 100 {
		return nil, fmt.Errorf("reviews: coupon_percent must be between 0 and 100")
	}
	return cfg, nil
}

// LoadSettingsOrDefault loads settings or falls back to defaults when the
// file does not exist.
func LoadSettingsOrDefault() *Settings {
	cfg, err := LoadSettings()
	if err != nil {
		return DefaultSettings()
	}
	return cfg
}
