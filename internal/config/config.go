package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"statguide/internal/errors"
)

// Backend modes
const (
	BackendGonum  = "gonum"
	BackendRemote = "remote"
	BackendNone   = "none"
)

// Config represents the complete application configuration
type Config struct {
	LogLevel string
	Server   ServerConfig
	Backend  BackendConfig
	Analysis AnalysisConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// BackendConfig selects the high-precision statistics backend
type BackendConfig struct {
	Mode    string
	URL     string
	APIKey  string
	Timeout time.Duration
}

// AnalysisConfig holds engine tuning knobs
type AnalysisConfig struct {
	// SignificanceAlpha is the default alpha for correlation matrices and
	// post-hoc flags. Assumption checks always use 0.05.
	SignificanceAlpha      float64
	MatrixWorkers          int
	MatrixOffloadThreshold int
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		Server:   ServerConfig{Port: "8080"},
		Backend: BackendConfig{
			Mode:    BackendGonum,
			Timeout: 5 * time.Second,
		},
		Analysis: AnalysisConfig{
			SignificanceAlpha:      0.05,
			MatrixWorkers:          4,
			MatrixOffloadThreshold: 8,
		},
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	def := Default()
	config := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", def.LogLevel),
		Server:   *loadServerConfig(def.Server),
		Backend:  *loadBackendConfig(def.Backend),
		Analysis: *loadAnalysisConfig(def.Analysis),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig(def ServerConfig) *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", def.Port),
	}
}

func loadBackendConfig(def BackendConfig) *BackendConfig {
	return &BackendConfig{
		Mode:    strings.ToLower(getEnvOrDefault("BACKEND_MODE", def.Mode)),
		URL:     getEnvOrDefault("BACKEND_URL", def.URL),
		APIKey:  getEnvOrDefault("BACKEND_API_KEY", def.APIKey),
		Timeout: getEnvDurationOrDefault("BACKEND_TIMEOUT", def.Timeout),
	}
}

func loadAnalysisConfig(def AnalysisConfig) *AnalysisConfig {
	return &AnalysisConfig{
		SignificanceAlpha:      getEnvFloatOrDefault("SIGNIFICANCE_ALPHA", def.SignificanceAlpha),
		MatrixWorkers:          getEnvIntOrDefault("MATRIX_WORKERS", def.MatrixWorkers),
		MatrixOffloadThreshold: getEnvIntOrDefault("MATRIX_OFFLOAD_THRESHOLD", def.MatrixOffloadThreshold),
	}
}

func validateConfig(config *Config) error {
	switch config.Backend.Mode {
	case BackendGonum, BackendNone:
	case BackendRemote:
		if config.Backend.URL == "" {
			return errors.ConfigInvalid("BACKEND_URL is required when BACKEND_MODE=remote")
		}
		if _, err := url.ParseRequestURI(config.Backend.URL); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("BACKEND_URL is not a valid URL: %v", err))
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown BACKEND_MODE %q", config.Backend.Mode))
	}
	if config.Backend.Timeout <= 0 {
		return errors.ConfigInvalid("BACKEND_TIMEOUT must be positive")
	}
	if a := config.Analysis.SignificanceAlpha; a <= 0 || a >= 1 {
		return errors.ConfigInvalid("SIGNIFICANCE_ALPHA must be in (0, 1)")
	}
	if config.Analysis.MatrixWorkers < 1 {
		return errors.ConfigInvalid("MATRIX_WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
