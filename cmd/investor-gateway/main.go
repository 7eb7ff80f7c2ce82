// ABOUTME: Entry point for the investor-gateway server
// ABOUTME: Serves investor authentication and payout settlement over HTTP

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/nostria/investor-gateway/internal/auth"
	"github.com/nostria/investor-gateway/internal/config"
	"github.com/nostria/investor-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _                     _                           _
 (_)_ ____   _____  ___| |_ ___  _ __ ___ __ _  ___| |_ _____      ____ _ _   _
 | | '_ \ \ / / _ \/ __| __/ _ \| '__|___/ _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | | | \ V /  __/\__ \ || (_) | |     | (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|_| |_|\_/ \___||___/\__\___/|_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                         |___/                             |___/
`

const usage = `Usage: investor-gateway <command> [flags]

Commands:
  serve       Start the gateway server
  init        Write a config file (flags override defaults)
  bootstrap   Create config, database, and operator token in one step
  health      Check gateway health

Run "investor-gateway <command> -h" for command flags.`

// getConfigPath returns the path to the gateway config file.
// Priority: INVESTOR_CONFIG env var > XDG_CONFIG_HOME/investor-gateway/gateway.yaml > ~/.config/investor-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("INVESTOR_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "investor-gateway", "gateway.yaml")
}

// getDataPath returns the path to the gateway data directory.
// Priority: XDG_DATA_HOME/investor-gateway > ~/.local/share/investor-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "investor-gateway")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Args[2:])
	case "bootstrap":
		err = runBootstrap(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	arrow := color.New(color.FgGreen).Sprint("    ▶ ")
	for _, line := range [][2]string{
		{"Config", configPath},
		{"HTTP", cfg.Server.HTTPAddr},
		{"Database", cfg.Database.Path},
		{"Domain", cfg.Challenge.HomeDomain},
	} {
		fmt.Printf("%s%-9s %s\n", arrow, line[0]+":", line[1])
	}
	fmt.Println()

	logger.Info("starting investor-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newColorHandler(os.Stdout, level))
}

func levelBadge(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return color.MagentaString("DBG")
	case slog.LevelInfo:
		return color.CyanString("INF")
	case slog.LevelWarn:
		return color.YellowString("WRN")
	case slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR")
	default:
		return l.String()
	}
}

// colorHandler renders human-oriented log lines for terminal use. Group names
// become dotted attr prefixes rather than nested structures.
type colorHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Level
	prefix string
	attrs  string
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{out: out, mu: &sync.Mutex{}, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) formatAttr(a slog.Attr) string {
	return color.HiBlackString(" "+h.prefix+a.Key+"=") + a.Value.String()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	b.WriteString(" " + levelBadge(r.Level) + " ")
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(h.formatAttr(a))
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		next.attrs += h.formatAttr(a)
	}
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// configSeed holds everything the generated YAML config needs.
type configSeed struct {
	HTTPAddr        string
	DBPath          string
	JWTSecret       string
	SessionDuration string
	ServerSeed      string
	Passphrase      string
	HomeDomain      string
	Pool            int64
	SharePct        float64
	LogLevel        string
	LogFormat       string
	Command         string
}

// fillSecrets generates the JWT secret and challenge seed when the caller
// left them empty.
func (s *configSeed) fillSecrets() error {
	if s.JWTSecret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		s.JWTSecret = base64.StdEncoding.EncodeToString(raw)
	}
	if s.ServerSeed == "" {
		raw := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("generating challenge seed: %w", err)
		}
		s.ServerSeed = hex.EncodeToString(raw)
	}
	return nil
}

// writeConfigFile renders the seed as YAML and writes it, creating the config
// and data directories as needed. Secrets keep the file at mode 0600.
func writeConfigFile(path string, s configSeed) error {
	content := fmt.Sprintf(`# investor-gateway configuration
# Generated by investor-gateway %s

server:
  http_addr: "%s"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  session_duration: "%s"

challenge:
  server_seed: "%s"
  network_passphrase: "%s"
  home_domain: "%s"

settlement:
  investment_pool: %d
  share_percentage: %g

logging:
  level: "%s"
  format: "%s"
`, s.Command, s.HTTPAddr, s.DBPath, s.JWTSecret, s.SessionDuration,
		s.ServerSeed, s.Passphrase, s.HomeDomain, s.Pool, s.SharePct,
		s.LogLevel, s.LogFormat)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// seedFlags registers the config knobs shared by init and bootstrap.
func seedFlags(fs *flag.FlagSet, s *configSeed, defaultDB string) {
	fs.StringVar(&s.HTTPAddr, "addr", "localhost:8080", "HTTP listen address")
	fs.StringVar(&s.DBPath, "db", defaultDB, "SQLite database path")
	fs.StringVar(&s.SessionDuration, "session-duration", "24h", "investor session lifetime")
	fs.StringVar(&s.Passphrase, "passphrase", "Investor Gateway Network ; 2024", "challenge network passphrase")
	fs.StringVar(&s.HomeDomain, "home-domain", "localhost:8080", "challenge home domain")
	fs.Int64Var(&s.Pool, "pool", 400000, "total investment pool")
	fs.Float64Var(&s.SharePct, "share", 50, "investor revenue share percentage")
	fs.StringVar(&s.LogLevel, "log-level", "info", "log level (debug/info/warn/error)")
	fs.StringVar(&s.LogFormat, "log-format", "text", "log format (text/json)")
}

// runInit writes a fresh config file without touching the database. Existing
// files are preserved unless --force is given.
func runInit(args []string) error {
	seed := configSeed{Command: "init"}
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	seedFlags(fs, &seed, filepath.Join(getDataPath(), "gateway.db"))
	output := fs.String("out", getConfigPath(), "config file path")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*output); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", *output)
	}

	if err := seed.fillSecrets(); err != nil {
		return err
	}
	if err := writeConfigFile(*output, seed); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Config written to %s\n", *output)
	fmt.Println("\nTo start the server:")
	fmt.Println("  investor-gateway serve")
	return nil
}

// runBootstrap performs first-time setup of the gateway:
// 1. Writes a config file with fresh secrets (unless one exists)
// 2. Creates the database
// 3. Mints an operator token and saves it for the admin CLI
func runBootstrap(args []string) error {
	seed := configSeed{Command: "bootstrap"}
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	seedFlags(fs, &seed, filepath.Join(getDataPath(), "gateway.db"))
	operator := fs.String("operator", "", "operator name minted into the token (required)")
	tokenTTL := fs.Duration("token-ttl", 30*24*time.Hour, "operator token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := strings.TrimSpace(*operator)
	switch {
	case name == "":
		return fmt.Errorf("--operator is required")
	case len(name) > 100:
		return fmt.Errorf("operator name exceeds maximum length of 100 characters")
	}

	configPath := getConfigPath()
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := seed.fillSecrets(); err != nil {
			return err
		}
		if err := writeConfigFile(configPath, seed); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Opening the gateway once creates the schema
	gw, err := gateway.New(cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(name, *tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	// The admin CLI reads this file when no token is configured
	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Printf("\n  Operator: %s\n", name)
	fmt.Printf("  Token:    %s (expires %s)\n\n", tokenPath,
		time.Now().Add(*tokenTTL).UTC().Format("Jan 02, 2006"))

	color.New(color.FgYellow).Println("  Ready to go:")
	fmt.Println("    investor-gateway serve           # start the gateway")
	fmt.Println("    investor-admin investor list     # verify operator access")
	fmt.Println()

	return nil
}
