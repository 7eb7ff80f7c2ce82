// ABOUTME: Configuration loading for the investor-admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
}

type GatewayConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// getAdminConfigPath returns the path to the admin config file.
// Priority: INVESTOR_ADMIN_CONFIG env var > XDG_CONFIG_HOME/investor-gateway/admin.toml > ~/.config/investor-gateway/admin.toml
func getAdminConfigPath() string {
	if envPath := os.Getenv("INVESTOR_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "investor-gateway", "admin.toml")
}

// loadConfig reads the admin config, falling back to defaults when the file
// is absent. Environment variables override file values.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Gateway: GatewayConfig{URL: "http://localhost:8080"},
	}

	path := getAdminConfigPath()
	if data, err := os.ReadFile(path); err == nil {
		expanded := expandEnvVars(string(data))
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if url := os.Getenv("INVESTOR_GATEWAY_URL"); url != "" {
		cfg.Gateway.URL = url
	}
	if token := os.Getenv("INVESTOR_TOKEN"); token != "" {
		cfg.Gateway.Token = token
	}
	if cfg.Gateway.Token == "" {
		cfg.Gateway.Token = readTokenFile()
	}

	cfg.Gateway.URL = strings.TrimSuffix(cfg.Gateway.URL, "/")
	return cfg, nil
}

// readTokenFile reads the token written by investor-gateway bootstrap.
func readTokenFile() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "investor-gateway", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
