package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alexmt/plus2flickr/internal/provider/flickr"
	"github.com/alexmt/plus2flickr/internal/provider/google"
)

// Config holds all application configuration. Scalar settings come from
// environment variables; provider app credentials can also be supplied via
// a YAML file referenced by PROVIDERS_CONFIG, which takes precedence over
// the per-provider env vars.
type Config struct {
	Port          int
	DatabaseURL   string
	SessionSecret string
	AllowedOrigin string

	Providers ProvidersConfig
}

// ProvidersConfig bundles the registered provider app credentials.
type ProvidersConfig struct {
	Google google.Config `yaml:"google"`
	Flickr flickr.Config `yaml:"flickr"`
}

// Load reads configuration from the environment (and an optional .env
// file) and validates required fields.
func Load() (Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	cfg := Config{
		Port:          port,
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
		Providers: ProvidersConfig{
			Google: google.Config{
				ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
			},
			Flickr: flickr.Config{
				ConsumerKey:    getEnv("FLICKR_CONSUMER_KEY", ""),
				ConsumerSecret: getEnv("FLICKR_CONSUMER_SECRET", ""),
			},
		},
	}

	if path := getEnv("PROVIDERS_CONFIG", ""); path != "" {
		providers, err := loadProvidersFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Providers = providers
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadProvidersFile(path string) (ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProvidersConfig{}, fmt.Errorf("read providers config: %w", err)
	}
	var providers ProvidersConfig
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return ProvidersConfig{}, fmt.Errorf("parse providers config: %w", err)
	}
	return providers, nil
}

func (c Config) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}
