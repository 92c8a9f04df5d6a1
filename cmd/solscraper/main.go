// Solana Candle Scraper CLI
// This application discovers the most liquid Solana pool for a token, pages
// its OHLCV history out of GeckoTerminal and keeps a local JSON dataset per
// token and timeframe up to date.
//
// Usage:
//
//	solscraper                                  # interactive prompts
//	solscraper <token-address> <timeframe>      # automation mode
//	solscraper --config scraper.yaml <token-address> 1h
//
// For detailed help, use: solscraper --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/johnayoung/solana-candle-scraper/internal/collector"
	"github.com/johnayoung/solana-candle-scraper/internal/config"
	apperrors "github.com/johnayoung/solana-candle-scraper/internal/errors"
	"github.com/johnayoung/solana-candle-scraper/internal/exchange"
	"github.com/johnayoung/solana-candle-scraper/internal/logger"
	"github.com/johnayoung/solana-candle-scraper/internal/models"
	"github.com/johnayoung/solana-candle-scraper/internal/storage"
)

// CLI version information
const (
	Version = "1.0.0"
	AppName = "solscraper"
)

// Exit codes following standard conventions
const (
	ExitSuccess       = 0
	ExitUsageError    = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitDataError     = 4
	ExitInterrupt     = 130
)

// Flags holds the parsed command line.
type Flags struct {
	ConfigPath  string
	DataDir     string
	WriteConfig string
	Version     bool
	Help        bool

	// Args are the positional arguments
	Args []string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code.
func run(args []string) int {
	flags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		return ExitUsageError
	}

	switch {
	case flags.Help:
		printUsage()
		return ExitSuccess
	case flags.Version:
		fmt.Printf("%s version %s\n", AppName, Version)
		return ExitSuccess
	case len(flags.Args) != 0 && len(flags.Args) != 2:
		fmt.Fprintf(os.Stderr, "Error: expected <token-address> <timeframe>, got %d arguments\n\n", len(flags.Args))
		printUsage()
		return ExitUsageError
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgManager := config.NewConfigManager(flags.ConfigPath, nil)
	cfg, err := cfgManager.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		return ExitConfigError
	}
	if flags.DataDir != "" {
		cfg.Storage.DataDir = flags.DataDir
	}

	if flags.WriteConfig != "" {
		if err := cfgManager.SaveConfig(ctx, flags.WriteConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitConfigError
		}
		fmt.Printf("Configuration written to %s\n", flags.WriteConfig)
		return ExitSuccess
	}

	logs, err := logger.NewLoggerManager(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to setup logging: %v\n", err)
		return ExitConfigError
	}
	defer logs.Close()

	app, err := newApp(ctx, cfg, logs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize: %v\n", err)
		return ExitConfigError
	}
	defer app.Close()

	req, err := app.request(ctx, flags.Args)
	if err != nil {
		return app.exitCode(err)
	}

	result, err := app.scraper.Run(ctx, req)
	if err != nil {
		return app.exitCode(err)
	}

	printSummary(result)
	return ExitSuccess
}

// app wires configuration into the scraper and its collaborators.
type app struct {
	cfg     *config.AppConfig
	logs    *logger.LoggerManager
	scraper *collector.Scraper
	prompt  *prompter
	mirror  *storage.DuckDBMirror
}

func newApp(ctx context.Context, cfg *config.AppConfig, logs *logger.LoggerManager) (*app, error) {
	loc, err := cfg.Collector.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Collector.Timezone, err)
	}

	pairs := exchange.NewDexScreenerClient(
		cfg.Exchange.PairsBaseURL,
		cfg.Exchange.HTTPTimeout(),
		logs.GetComponentLogger("dexscreener").Logger)

	source := exchange.NewGeckoTerminalClient(exchange.GeckoTerminalConfig{
		BaseURL:   cfg.Exchange.OHLCVBaseURL,
		Network:   cfg.Exchange.Network,
		PageSize:  cfg.Exchange.PageSize,
		Throttle:  cfg.Exchange.Throttle(),
		Timeout:   cfg.Exchange.HTTPTimeout(),
		UserAgent: cfg.Exchange.UserAgent,
		Location:  loc,
	}, logs.GetComponentLogger("geckoterminal").Logger)

	a := &app{cfg: cfg, logs: logs, prompt: newPrompter(os.Stdin, os.Stdout)}

	var store storage.DatasetStore = storage.NewJSONFileStore(loc, logs.GetComponentLogger("storage").Logger)
	if cfg.Storage.DuckDBPath != "" {
		mirror, err := storage.NewDuckDBMirror(ctx, store, cfg.Storage.DuckDBPath, logs.GetComponentLogger("duckdb").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open DuckDB mirror: %w", err)
		}
		a.mirror = mirror
		store = mirror
	}

	a.scraper, err = collector.NewBuilder().
		WithPairProvider(pairs).
		WithCandleSource(source).
		WithStore(store).
		WithLogger(logs.GetComponentLogger("scraper").Logger).
		WithDataDir(cfg.Storage.DataDir).
		WithChainID(cfg.Exchange.ChainID).
		WithPageSize(cfg.Exchange.PageSize).
		WithMaxPages(cfg.Exchange.MaxPages).
		WithRateLimitPause(cfg.Exchange.Pause()).
		WithLocation(loc).
		WithReports(cfg.Collector.ReportGaps, cfg.Collector.InspectCandles).
		Build()
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// request builds the run request from positional arguments, or from prompts
// when there are none. Automation mode never asks for a pair.
func (a *app) request(ctx context.Context, args []string) (collector.RunRequest, error) {
	if len(args) == 2 {
		return collector.RunRequest{
			TokenAddress: strings.TrimSpace(args[0]),
			Timeframe:    strings.ToLower(strings.TrimSpace(args[1])),
		}, nil
	}

	token, err := a.prompt.TokenAddress(ctx)
	if err != nil {
		return collector.RunRequest{}, err
	}
	timeframe, err := a.prompt.Timeframe(ctx, a.cfg.Collector.DefaultTimeframe)
	if err != nil {
		return collector.RunRequest{}, err
	}

	return collector.RunRequest{
		TokenAddress: token,
		Timeframe:    timeframe,
		Chooser:      a.prompt,
	}, nil
}

// exitCode reports err to the user and maps it to an exit code.
func (a *app) exitCode(err error) int {
	log := a.logs.GetLogger()
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\nCancelled.")
		return ExitInterrupt
	case errors.Is(err, errAddressRequired):
		fmt.Println("Address required.")
		return ExitUsageError
	case errors.Is(err, collector.ErrNoPairs):
		fmt.Println("No Solana pairs found.")
		return ExitDataError
	case collector.IsDiscoveryError(err):
		log.Error("Pair discovery failed", errorAttrs(err)...)
		return ExitConnectionErr
	default:
		log.Error("Scrape failed", errorAttrs(err)...)
		return ExitDataError
	}
}

// errorAttrs describes a fatal error for the log.
func errorAttrs(err error) []any {
	return []any{
		"error", err,
		"error_type", string(apperrors.GetErrorType(err)),
		"severity", apperrors.GetSeverity(err).String(),
		"retryable", apperrors.IsRetryable(err),
	}
}

// Close releases the DuckDB mirror when one is open.
func (a *app) Close() {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logs.GetLogger().Warn("failed to close DuckDB mirror", "error", err)
		}
	}
}

// parseFlags parses command line arguments
func parseFlags(args []string) (*Flags, error) {
	flags := &Flags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a value")
			}
			flags.ConfigPath = args[i+1]
			i++
		case "--data-dir", "-d":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--data-dir requires a value")
			}
			flags.DataDir = args[i+1]
			i++
		case "--write-config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--write-config requires a value")
			}
			flags.WriteConfig = args[i+1]
			i++
		case "--version", "-v":
			flags.Version = true
		case "--help", "-h", "help":
			flags.Help = true
		default:
			if strings.HasPrefix(args[i], "-") {
				return nil, fmt.Errorf("unknown flag: %s", args[i])
			}
			flags.Args = append(flags.Args, args[i])
		}
	}

	return flags, nil
}

func printSummary(result *collector.RunResult) {
	fmt.Printf("%d existing + %d new recent + %d older fetched.\n",
		result.Merge.Existing, result.Merge.Future, result.Merge.History)

	candles := result.Dataset.Candles
	if len(candles) == 0 {
		fmt.Printf("Saved empty dataset to %s\n", result.Location.Path())
		return
	}
	fmt.Printf("Saved %d candles (%s to %s) to %s\n",
		len(candles),
		candles[0].DateReadable,
		candles[len(candles)-1].DateReadable,
		result.Location.Path())
	if line := formatErrorStats(result.ErrorStats); line != "" {
		fmt.Println(line)
	}
}

// formatErrorStats renders per-type error counts in type order, or "" when
// the run saw no errors.
func formatErrorStats(stats map[apperrors.ErrorType]apperrors.ErrorStats) string {
	if len(stats) == 0 {
		return ""
	}
	types := make([]string, 0, len(stats))
	var total int64
	for t, s := range stats {
		types = append(types, string(t))
		total += s.Count
	}
	sort.Strings(types)

	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s=%d", t, stats[apperrors.ErrorType(t)].Count)
	}
	return fmt.Sprintf("Recovered from %d errors (%s)", total, strings.Join(parts, ", "))
}

// printUsage prints the main usage information
func printUsage() {
	fmt.Printf(`%s - Solana Candle Scraper v%s

USAGE:
    %s [options]                              Interactive mode
    %s [options] <token-address> <timeframe>  Automation mode

TIMEFRAMES:
    %s (unknown values fetch daily candles)

OPTIONS:
    --config, -c <path>     Load configuration from a JSON or YAML file
    --data-dir, -d <dir>    Directory holding dataset files
    --write-config <path>   Write the effective configuration and exit
    --help, -h              Show help information
    --version, -v           Show version information

EXAMPLES:
    # Update the hourly dataset for a token without prompts
    %s DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263 1h

    # Start the interactive prompts with a custom config
    %s --config scraper.yaml

CONFIGURATION:
    Configuration can be provided via:
    - Config file: --config <path> (.json, .yaml or .yml)
    - A .env file in the working directory
    - Environment variables (e.g., DATA_DIR, DUCKDB_PATH, LOG_LEVEL)

    Datasets are written to <data-dir>/<SYMBOL>_<token>_<timeframe>.json.
`, AppName, Version, AppName, AppName, strings.Join(models.SupportedTimeframes(), ", "), AppName, AppName)
}
