// ABOUTME: Configuration loading and parsing for investor-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete investor-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Challenge  ChallengeConfig  `yaml:"challenge"`
	Settlement SettlementConfig `yaml:"settlement"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds session and operator token configuration
type AuthConfig struct {
	// JWTSecret signs operator bearer tokens for the admin API surface
	JWTSecret string `yaml:"jwt_secret"`

	// SessionDuration controls how long investor sessions stay valid
	SessionDuration time.Duration `yaml:"-"`

	// MaxEventAge bounds how far a signed login event's timestamp may
	// drift from server time, in either direction
	MaxEventAge time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionDurationRaw string `yaml:"session_duration"`
	MaxEventAgeRaw     string `yaml:"max_event_age"`
}

// ChallengeConfig holds challenge-response authentication configuration
type ChallengeConfig struct {
	// ServerSeed is the hex-encoded ed25519 seed the server signs challenges with
	ServerSeed string `yaml:"server_seed"`

	// NetworkPassphrase domain-separates challenge signatures between deployments
	NetworkPassphrase string `yaml:"network_passphrase"`

	// HomeDomain identifies this service inside issued challenges
	HomeDomain string `yaml:"home_domain"`

	// TTL controls how long an issued challenge stays redeemable
	TTL time.Duration `yaml:"-"`

	TTLRaw string `yaml:"ttl"`
}

// SettlementConfig holds the payout computation parameters
type SettlementConfig struct {
	// InvestmentPool is the total pool size investor shares are computed against
	InvestmentPool float64 `yaml:"investment_pool"`

	// SharePercentage is the default slice of revenue distributed to investors
	SharePercentage float64 `yaml:"share_percentage"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves a value unset.
const (
	DefaultSessionDuration = 24 * time.Hour
	DefaultMaxEventAge     = 5 * time.Minute
	DefaultChallengeTTL    = 5 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Auth.SessionDuration == 0 {
		c.Auth.SessionDuration = DefaultSessionDuration
	}
	if c.Auth.MaxEventAge == 0 {
		c.Auth.MaxEventAge = DefaultMaxEventAge
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = DefaultChallengeTTL
	}
	if c.Settlement.SharePercentage == 0 {
		c.Settlement.SharePercentage = 50
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Challenge.ServerSeed == "" {
		return fmt.Errorf("challenge.server_seed is required")
	}

	if c.Challenge.NetworkPassphrase == "" {
		return fmt.Errorf("challenge.network_passphrase is required")
	}

	if c.Settlement.InvestmentPool <= 0 {
		return fmt.Errorf("settlement.investment_pool must be positive")
	}

	if c.Settlement.SharePercentage <= 0 || c.Settlement.SharePercentage > 100 {
		return fmt.Errorf("settlement.share_percentage must be in (0, 100]")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionDurationRaw != "" {
		cfg.Auth.SessionDuration, err = time.ParseDuration(cfg.Auth.SessionDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session_duration %q: %w", cfg.Auth.SessionDurationRaw, err)
		}
	}

	if cfg.Auth.MaxEventAgeRaw != "" {
		cfg.Auth.MaxEventAge, err = time.ParseDuration(cfg.Auth.MaxEventAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing max_event_age %q: %w", cfg.Auth.MaxEventAgeRaw, err)
		}
	}

	if cfg.Challenge.TTLRaw != "" {
		cfg.Challenge.TTL, err = time.ParseDuration(cfg.Challenge.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing challenge ttl %q: %w", cfg.Challenge.TTLRaw, err)
		}
	}

	return nil
}
