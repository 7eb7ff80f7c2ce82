// ABOUTME: Admin CLI for investor-gateway registration and settlement
// ABOUTME: Uses the HTTP operator API with JWT bearer authentication

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
  _                     _                             _           _
 (_)_ ____   _____  ___| |_ ___  _ __        __ _  __| |_ __ ___ (_)_ __
 | | '_ \ \ / / _ \/ __| __/ _ \| '__|_____ / _' |/ _' | '_ ' _ \| | '_ \
 | | | | \ V /  __/\__ \ || (_) | | |______| (_| | (_| | | | | | | | | | |
 |_|_| |_|\_/ \___||___/\__\___/|_|         \__,_|\__,_|_| |_| |_|_|_| |_|
`

type Investor struct {
	ID               string  `json:"id"`
	NostrPubkey      string  `json:"nostr_pubkey,omitempty"`
	StellarPubkey    string  `json:"stellar_pubkey,omitempty"`
	Name             string  `json:"name,omitempty"`
	Email            string  `json:"email,omitempty"`
	InvestmentAmount float64 `json:"investment_amount"`
	InvestmentDate   string  `json:"investment_date"`
	SharePercentage  float64 `json:"share_percentage"`
	CreatedAt        string  `json:"created_at"`
}

type RevenuePeriod struct {
	ID              int64   `json:"id"`
	Month           string  `json:"month"`
	Year            int     `json:"year"`
	TotalRevenue    float64 `json:"total_revenue"`
	SharePercentage float64 `json:"share_percentage"`
	InvestorPayout  float64 `json:"investor_payout"`
	CreatedAt       string  `json:"created_at"`
}

type PayoutSummary struct {
	ID              int64   `json:"id"`
	InvestorID      string  `json:"investor_id"`
	Amount          float64 `json:"amount"`
	SharePercentage float64 `json:"share_percentage"`
	Status          string  `json:"status"`
}

type SettlementResult struct {
	Period  RevenuePeriod   `json:"period"`
	Payouts []PayoutSummary `json:"payouts"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "status":
		err = cmdStatus(cfg)
	case "investor":
		err = cmdInvestor(cfg, args)
	case "settle":
		err = cmdSettle(cfg, args)
	case "revenues":
		err = cmdRevenues(cfg)
	case "payout":
		err = cmdPayout(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: investor-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                         Show gateway health and operator access")
	fmt.Println("  investor                       List registered investors")
	fmt.Println("  investor list                  List registered investors")
	fmt.Println("  investor add                   Register a new investor")
	fmt.Println("  investor update <id>           Update an investor")
	fmt.Println("  settle                         Settle a month of revenue")
	fmt.Println("  revenues                       List settled revenue periods")
	fmt.Println("  payout <id> --status <status>  Advance a payout's status")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  INVESTOR_GATEWAY_URL   Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  INVESTOR_TOKEN         Operator JWT (falls back to bootstrap token file)")
	fmt.Println("  INVESTOR_ADMIN_CONFIG  Path to admin.toml")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  investor-admin investor add --name 'Ada' --nostr <pubkey> --amount 50000 --date 2024-01-15")
	fmt.Println("  investor-admin settle --month January --year 2024 --revenue 400000")
	fmt.Println("  investor-admin payout 3 --status completed --ref tx-8842")
	fmt.Println()
}

// apiError is the gateway's JSON error envelope.
type apiError struct {
	Error string `json:"error"`
}

// doRequest performs an authenticated request and decodes the JSON response
// into out when out is non-nil.
func doRequest(cfg *Config, method, path string, body, out any) error {
	if cfg.Gateway.Token == "" {
		return fmt.Errorf("operator token required (set INVESTOR_TOKEN or run investor-gateway bootstrap)")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, cfg.Gateway.URL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Gateway.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// cmdStatus shows gateway health and token validity
func cmdStatus(cfg *Config) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(cfg.Gateway.URL + "/health")
	if err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	resp.Body.Close()

	green.Printf("  Gateway:  ")
	fmt.Printf("connected to %s\n", cfg.Gateway.URL)

	if cfg.Gateway.Token == "" {
		yellow.Printf("  Operator: ")
		fmt.Println("(no token - set INVESTOR_TOKEN)")
		fmt.Println()
		return nil
	}

	var investors []Investor
	if err := doRequest(cfg, http.MethodGet, "/api/investors", nil, &investors); err != nil {
		yellow.Printf("  Operator: ")
		color.Red("auth failed (%v)\n", err)
	} else {
		green.Printf("  Operator: ")
		fmt.Printf("token accepted (%d investors registered)\n", len(investors))
	}

	fmt.Println()
	return nil
}

// cmdInvestor handles investor subcommands
func cmdInvestor(cfg *Config, args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdInvestorList(cfg)
	case "add", "create":
		return cmdInvestorAdd(cfg, args)
	case "update":
		return cmdInvestorUpdate(cfg, args)
	default:
		return fmt.Errorf("unknown investor subcommand: %s (use list, add, update)", subcmd)
	}
}

// cmdInvestorList lists all investors
func cmdInvestorList(cfg *Config) error {
	var investors []Investor
	if err := doRequest(cfg, http.MethodGet, "/api/investors", nil, &investors); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Investors")
	cyan.Println("  ---------")

	if len(investors) == 0 {
		fmt.Println("  (no investors)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tKEYS\tAMOUNT\tSHARE\tDATE")
	fmt.Fprintln(w, "  --\t----\t----\t------\t-----\t----")

	for _, inv := range investors {
		var keys []string
		if inv.NostrPubkey != "" {
			keys = append(keys, "nostr")
		}
		if inv.StellarPubkey != "" {
			keys = append(keys, "stellar")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f\t%.2f%%\t%s\n",
			truncate(inv.ID, 12),
			truncate(inv.Name, 20),
			strings.Join(keys, ","),
			inv.InvestmentAmount,
			inv.SharePercentage,
			inv.InvestmentDate,
		)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdInvestorAdd registers a new investor
func cmdInvestorAdd(cfg *Config, args []string) error {
	var nostrKey, stellarKey, name, email, date string
	var amount float64

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--nostr":
			if i+1 < len(args) {
				nostrKey = args[i+1]
				i++
			}
		case "--stellar":
			if i+1 < len(args) {
				stellarKey = args[i+1]
				i++
			}
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		case "--amount", "-a":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid --amount: %s", args[i+1])
				}
				amount = v
				i++
			}
		case "--date", "-d":
			if i+1 < len(args) {
				date = args[i+1]
				i++
			}
		}
	}

	if (nostrKey == "" && stellarKey == "") || amount <= 0 || date == "" {
		return fmt.Errorf("usage: investor add [--nostr <pubkey>] [--stellar <pubkey>] --amount <n> --date <YYYY-MM-DD> [--name <s>] [--email <s>]")
	}

	req := map[string]any{
		"investment_amount": amount,
		"investment_date":   date,
	}
	if nostrKey != "" {
		req["nostr_pubkey"] = nostrKey
	}
	if stellarKey != "" {
		req["stellar_pubkey"] = stellarKey
	}
	if name != "" {
		req["name"] = name
	}
	if email != "" {
		req["email"] = email
	}

	var inv Investor
	if err := doRequest(cfg, http.MethodPost, "/api/investors", req, &inv); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Registered investor: %s\n", inv.ID)
	fmt.Printf("  Name:    %s\n", inv.Name)
	fmt.Printf("  Amount:  %.2f\n", inv.InvestmentAmount)
	fmt.Printf("  Share:   %.2f%%\n", inv.SharePercentage)

	return nil
}

// cmdInvestorUpdate updates an existing investor
func cmdInvestorUpdate(cfg *Config, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: investor update <id> [--name <s>] [--email <s>] [--amount <n>] [--date <YYYY-MM-DD>]")
	}
	id := args[0]
	args = args[1:]

	req := map[string]any{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				req["name"] = args[i+1]
				i++
			}
		case "--email", "-e":
			if i+1 < len(args) {
				req["email"] = args[i+1]
				i++
			}
		case "--amount", "-a":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid --amount: %s", args[i+1])
				}
				req["investment_amount"] = v
				i++
			}
		case "--date", "-d":
			if i+1 < len(args) {
				req["investment_date"] = args[i+1]
				i++
			}
		}
	}

	if len(req) == 0 {
		return fmt.Errorf("nothing to update (use --name, --email, --amount, --date)")
	}

	var inv Investor
	if err := doRequest(cfg, http.MethodPatch, "/api/investors/"+id, req, &inv); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Updated investor: %s\n", inv.ID)
	fmt.Printf("  Name:    %s\n", inv.Name)
	fmt.Printf("  Amount:  %.2f\n", inv.InvestmentAmount)
	fmt.Printf("  Share:   %.2f%%\n", inv.SharePercentage)

	return nil
}

// cmdSettle settles a month of revenue
func cmdSettle(cfg *Config, args []string) error {
	var month string
	var year int
	var revenue float64
	var share *float64

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--month", "-m":
			if i+1 < len(args) {
				month = args[i+1]
				i++
			}
		case "--year", "-y":
			if i+1 < len(args) {
				v, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid --year: %s", args[i+1])
				}
				year = v
				i++
			}
		case "--revenue", "-r":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid --revenue: %s", args[i+1])
				}
				revenue = v
				i++
			}
		case "--share", "-s":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid --share: %s", args[i+1])
				}
				share = &v
				i++
			}
		}
	}

	if month == "" || year == 0 {
		return fmt.Errorf("usage: settle --month <name> --year <n> --revenue <n> [--share <pct>]")
	}

	req := map[string]any{
		"month":         month,
		"year":          year,
		"total_revenue": revenue,
	}
	if share != nil {
		req["share_percentage"] = *share
	}

	var result SettlementResult
	if err := doRequest(cfg, http.MethodPost, "/api/revenues", req, &result); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	green.Printf("✓ Settled %s %d\n", result.Period.Month, result.Period.Year)
	fmt.Printf("  Total revenue:   %.2f\n", result.Period.TotalRevenue)
	fmt.Printf("  Investor payout: %.2f (%.2f%%)\n", result.Period.InvestorPayout, result.Period.SharePercentage)
	fmt.Println()

	if len(result.Payouts) == 0 {
		fmt.Println("  (no investors to pay)")
		return nil
	}

	cyan.Println("  Payouts")
	cyan.Println("  -------")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tINVESTOR\tSHARE\tAMOUNT\tSTATUS")
	fmt.Fprintln(w, "  --\t--------\t-----\t------\t------")
	for _, p := range result.Payouts {
		fmt.Fprintf(w, "  %d\t%s\t%.2f%%\t%.2f\t%s\n",
			p.ID, truncate(p.InvestorID, 12), p.SharePercentage, p.Amount, p.Status)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdRevenues lists settled revenue periods
func cmdRevenues(cfg *Config) error {
	var periods []RevenuePeriod
	if err := doRequest(cfg, http.MethodGet, "/api/revenues", nil, &periods); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Revenue Periods")
	cyan.Println("  ---------------")

	if len(periods) == 0 {
		fmt.Println("  (no settled periods)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  PERIOD\tREVENUE\tSHARE\tPAYOUT\tSETTLED")
	fmt.Fprintln(w, "  ------\t-------\t-----\t------\t-------")

	for _, p := range periods {
		settled := p.CreatedAt
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			settled = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s %d\t%.2f\t%.2f%%\t%.2f\t%s\n",
			p.Month, p.Year, p.TotalRevenue, p.SharePercentage, p.InvestorPayout, settled)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdPayout advances a payout's status
func cmdPayout(cfg *Config, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: payout <id> --status <pending|completed|failed> [--ref <s>]")
	}
	id := args[0]
	args = args[1:]

	var status, ref string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--status", "-s":
			if i+1 < len(args) {
				status = args[i+1]
				i++
			}
		case "--ref", "-r":
			if i+1 < len(args) {
				ref = args[i+1]
				i++
			}
		}
	}

	if status == "" {
		return fmt.Errorf("usage: payout <id> --status <pending|completed|failed> [--ref <s>]")
	}

	req := map[string]any{"status": status}
	if ref != "" {
		req["settlement_ref"] = ref
	}

	var payout PayoutSummary
	if err := doRequest(cfg, http.MethodPost, "/api/payouts/"+id+"/status", req, &payout); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Payout %d is now %s\n", payout.ID, payout.Status)

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
