package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RowanDark/internpool/canon"
	"github.com/RowanDark/internpool/logging"
	"github.com/RowanDark/internpool/pool"
	"github.com/RowanDark/internpool/reachability"
	"github.com/RowanDark/internpool/table"
)

// Format represents a report format option.
type Format string

// Supported report format options.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

const (
	defaultRounds        = 3
	defaultWords         = 10000
	defaultSweepInterval = 5 * time.Second
	defaultStatsInterval = 10 * time.Second
)

// Config captures all runtime configuration for the CLI.
type Config struct {
	Shards             int
	SweepInterval      time.Duration
	SweepBudget        int
	AmortizedSweepRate float64
	Notifications      bool
	MaxHandles         int64

	Workers      int
	Rounds       int
	Words        int
	Seed         uint64
	WordlistPath string
	Preload      []string

	OutputPath    string
	Format        Format
	JSONPretty    bool
	MetricsAddr   string
	StatsInterval time.Duration

	WebhookURL    string
	WebhookSecret string
	WebhookRate   float64

	Verbose    bool
	Silent     bool
	LogLevel   string
	LogFile    string
	GCPercent  int
	ConfigPath string
	Profile    string
}

// BindFlags registers the shared command-line flags and returns a Config
// instance whose fields are populated when Cobra parses flag values.
func BindFlags(cmd *cobra.Command) *Config {
	cfg := &Config{}

	flags := cmd.PersistentFlags()
	flags.IntVar(&cfg.Shards, "shards", 0, "Number of table shards, rounded up to a power of two (0 picks a default from GOMAXPROCS)")
	flags.DurationVar(&cfg.SweepInterval, "sweep-interval", defaultSweepInterval, "Interval between background sweeps of stale entries (0 disables)")
	flags.IntVar(&cfg.SweepBudget, "sweep-budget", pool.DefaultSweepBudget, "Maximum entries examined per background sweep")
	flags.Float64Var(&cfg.AmortizedSweepRate, "amortized-sweep-rate", 0, "Small sweeps per second triggered from intern calls (0 disables)")
	flags.BoolVar(&cfg.Notifications, "notifications", true, "Remove entries as soon as the runtime reports their instance reclaimed")
	flags.Int64Var(&cfg.MaxHandles, "max-handles", 0, "Maximum outstanding weak handles before interning fails (0 is unlimited)")

	flags.IntVarP(&cfg.Workers, "workers", "w", runtime.GOMAXPROCS(0), "Number of concurrent interning workers")
	flags.IntVarP(&cfg.Rounds, "rounds", "r", defaultRounds, "Number of interning rounds, with a garbage collection between rounds")
	flags.IntVar(&cfg.Words, "words", defaultWords, "Size of the generated corpus when no wordlist or stdin input is given")
	flags.Uint64Var(&cfg.Seed, "seed", 1, "Seed for the generated corpus")
	flags.StringVar(&cfg.WordlistPath, "wordlist", "", "Path to a wordlist with one word per line")
	flags.StringSliceVar(&cfg.Preload, "preload", nil, "Comma-separated literals resolved once and kept for the whole run")

	flags.StringVarP(&cfg.OutputPath, "output", "o", "", "Optional file path to write the run report")
	flags.StringVar((*string)(&cfg.Format), "format", string(FormatTXT), "Report format (json, csv, txt)")
	flags.BoolVar(&cfg.JSONPretty, "json-pretty", false, "Pretty-print JSON reports")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.DurationVar(&cfg.StatsInterval, "stats-interval", defaultStatsInterval, "Interval between pool statistics log lines")
	flags.StringVar(&cfg.WebhookURL, "webhook-url", "", "POST round failures and the final summary to this URL")
	flags.StringVar(&cfg.WebhookSecret, "webhook-secret", "", "Sign webhook payloads with HMAC-SHA256 using this secret")
	flags.Float64Var(&cfg.WebhookRate, "webhook-rate", 1, "Maximum webhook deliveries per second")

	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging output")
	flags.BoolVar(&cfg.Silent, "silent", false, "Suppress console logging")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Also write logs to this file")
	flags.IntVar(&cfg.GCPercent, "gc-percent", 100, "Garbage collector target percentage for the run")
	flags.StringVar(&cfg.ConfigPath, "config", "", "Path to a "+defaultConfigFilename+" file")
	flags.StringVar(&cfg.Profile, "profile", "", "Named profile to load from the config file")

	return cfg
}

// Validate ensures the provided configuration values meet the expected
// constraints and normalises their representation where required.
func (c *Config) Validate() error {
	if c.Silent && c.Verbose {
		return fmt.Errorf("--silent and --verbose cannot be used together")
	}

	if c.Shards < 0 {
		return fmt.Errorf("invalid shard count %d: must not be negative", c.Shards)
	}
	if c.Shards > 0 {
		c.Shards = table.NextPowerOfTwo(c.Shards)
		if c.Shards > table.MaxShards {
			return fmt.Errorf("invalid shard count %d: at most %d shards are supported", c.Shards, table.MaxShards)
		}
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("invalid sweep interval %s: must not be negative", c.SweepInterval)
	}
	if c.SweepBudget <= 0 {
		c.SweepBudget = pool.DefaultSweepBudget
	}
	if c.AmortizedSweepRate < 0 {
		return fmt.Errorf("invalid amortized sweep rate %v: must not be negative", c.AmortizedSweepRate)
	}
	if c.MaxHandles < 0 {
		return fmt.Errorf("invalid max handles %d: must not be negative", c.MaxHandles)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Rounds <= 0 {
		c.Rounds = defaultRounds
	}
	if c.Words <= 0 {
		c.Words = defaultWords
	}
	c.WordlistPath = strings.TrimSpace(c.WordlistPath)

	if len(c.Preload) > 0 {
		filtered := make([]string, 0, len(c.Preload))
		for _, literal := range c.Preload {
			literal = strings.TrimSpace(literal)
			if literal == "" {
				continue
			}
			filtered = append(filtered, literal)
		}
		c.Preload = filtered
	}

	format := strings.ToLower(strings.TrimSpace(string(c.Format)))
	switch Format(format) {
	case FormatJSON, FormatCSV, FormatTXT:
		c.Format = Format(format)
	case "":
		c.Format = FormatTXT
	default:
		return fmt.Errorf("invalid output format %q: expected json, csv, or txt", c.Format)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.StatsInterval <= 0 {
		c.StatsInterval = defaultStatsInterval
	}
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)

	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	if c.WebhookSecret == "" {
		c.WebhookSecret = strings.TrimSpace(os.Getenv("INTERNPOOL_WEBHOOK_SECRET"))
	}
	if c.WebhookRate < 0 {
		return fmt.Errorf("invalid webhook rate %v: must not be negative", c.WebhookRate)
	}

	return nil
}

// LiveOutput returns true when the report should be sent to stdout instead of a file.
func (c *Config) LiveOutput() bool {
	return strings.TrimSpace(c.OutputPath) == ""
}

// PoolOptions translates the configuration into pool options.
func (c *Config) PoolOptions(logger *logging.Logger) pool.Options {
	return pool.Options{
		Shards:               c.Shards,
		Bridge:               reachability.NewWeakBridge[canon.String](reachability.WeakOptions{MaxHandles: c.MaxHandles}),
		DisableNotifications: !c.Notifications,
		SweepInterval:        c.SweepInterval,
		SweepBudget:          c.SweepBudget,
		AmortizedSweepRate:   c.AmortizedSweepRate,
		Logger:               logger,
	}
}
