package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTokenExpirationDays  = 14
	DefaultSweepIntervalMinutes = 30
	DefaultListenAddr           = ":8080"
)

// Config represents the application configuration
type Config struct {
	// DatabaseURL is the postgres connection string
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// BaseURL is the public origin action links are built against,
	// e.g. https://shifts.example.org
	BaseURL string `yaml:"baseURL" validate:"required,url"`

	// ListenAddr is the HTTP listen address for the serve command
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// TokenExpirationDays is the lifetime of emailed action links
	TokenExpirationDays int `yaml:"tokenExpirationDays,omitempty" validate:"omitempty,min=1"`

	// SweepIntervalMinutes is how often the serve command runs the reminder
	// and auto-reopen sweeps
	SweepIntervalMinutes int `yaml:"sweepIntervalMinutes,omitempty" validate:"omitempty,min=1"`

	// AdminEmails receive reopen alerts and operational notices
	AdminEmails []string `yaml:"adminEmails" validate:"required,min=1,dive,email"`

	GmailUserID string `yaml:"gmailUserID" validate:"required"`
	GmailSender string `yaml:"gmailSender,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration with an environment
// suffix. For example, env="test" will look for "shifts_config.test.yaml".
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TokenExpirationDays == 0 {
		cfg.TokenExpirationDays = DefaultTokenExpirationDays
	}
	if cfg.SweepIntervalMinutes == 0 {
		cfg.SweepIntervalMinutes = DefaultSweepIntervalMinutes
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// findConfigFile searches for the config file in current directory and home
// directory. If env is provided it is added as an extension, e.g.
// "shifts_config.test.yaml".
func findConfigFile(env string) (string, error) {
	configFileName := "shifts_config.yaml"
	if env != "" {
		configFileName = "shifts_config." + env + ".yaml"
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
