// Package config handles configuration loading for investor-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${INVESTOR_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  session_duration: "24h"
//	  max_event_age: "5m"
//
//	challenge:
//	  ttl: "5m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/investor-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${INVESTOR_JWT_SECRET}"  # Signs operator bearer tokens
//	  session_duration: "24h"
//	  max_event_age: "5m"
//
// Challenge-response login:
//
//	challenge:
//	  server_seed: "${INVESTOR_SERVER_SEED}"  # Hex ed25519 seed
//	  network_passphrase: "Nostria Investor Network ; 2024"
//	  home_domain: "invest.nostria.app"
//	  ttl: "5m"
//
// Settlement parameters:
//
//	settlement:
//	  investment_pool: 400000
//	  share_percentage: 50
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
