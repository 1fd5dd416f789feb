package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const defaultConfigFilename = ".internpool.yaml"

type fileConfig struct {
	Profiles map[string]profileSettings `yaml:"profiles"`
}

type profileSettings struct {
	Shards             *int           `yaml:"shards"`
	SweepInterval      *time.Duration `yaml:"sweep_interval"`
	SweepBudget        *int           `yaml:"sweep_budget"`
	AmortizedSweepRate *float64       `yaml:"amortized_sweep_rate"`
	Notifications      *bool          `yaml:"notifications"`
	MaxHandles         *int64         `yaml:"max_handles"`
	Workers            *int           `yaml:"workers"`
	Rounds             *int           `yaml:"rounds"`
	Words              *int           `yaml:"words"`
	Seed               *uint64        `yaml:"seed"`
	WordlistPath       *string        `yaml:"wordlist"`
	Preload            *StringSlice   `yaml:"preload"`
	OutputPath         *string        `yaml:"output"`
	Format             *string        `yaml:"format"`
	JSONPretty         *bool          `yaml:"json_pretty"`
	MetricsAddr        *string        `yaml:"metrics_addr"`
	StatsInterval      *time.Duration `yaml:"stats_interval"`
	WebhookURL         *string        `yaml:"webhook_url"`
	WebhookSecret      *string        `yaml:"webhook_secret"`
	WebhookRate        *float64       `yaml:"webhook_rate"`
	Verbose            *bool          `yaml:"verbose"`
	Silent             *bool          `yaml:"silent"`
	LogLevel           *string        `yaml:"log_level"`
	LogFile            *string        `yaml:"log_file"`
	GCPercent          *int           `yaml:"gc_percent"`
}

// StringSlice accepts either a single scalar or a sequence of strings.
type StringSlice []string

func (s *StringSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var str string
		if err := value.Decode(&str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = nil
			return nil
		}
		*s = []string{str}
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		cleaned := make([]string, 0, len(raw))
		for _, item := range raw {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			cleaned = append(cleaned, item)
		}
		*s = cleaned
		return nil
	default:
		return fmt.Errorf("unsupported YAML type %s for string slice", value.ShortTag())
	}
}

func (s *StringSlice) ToSlice() []string {
	if s == nil {
		return nil
	}
	dup := make([]string, len(*s))
	copy(dup, *s)
	return dup
}

// ApplyProfile loads and applies the requested configuration profile to cfg.
// Command-line flag overrides take precedence over profile values.
func ApplyProfile(cfg *Config, cmd *cobra.Command) error {
	path, err := resolveConfigPath(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("locating config file: %w", err)
	}

	if path == "" {
		if cfg.Profile != "" {
			return fmt.Errorf("profile %q requested but no %s file was found", cfg.Profile, defaultConfigFilename)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if len(fc.Profiles) == 0 {
		if cfg.Profile != "" {
			return fmt.Errorf("profile %q not found in %s", cfg.Profile, path)
		}
		return nil
	}

	profileName := cfg.Profile
	if profileName == "" {
		if _, ok := fc.Profiles["default"]; ok {
			profileName = "default"
		}
	}

	if profileName == "" {
		return nil
	}

	profile, ok := fc.Profiles[profileName]
	if !ok {
		return fmt.Errorf("profile %q not found in %s", profileName, path)
	}

	applyProfileSettings(cfg, &profile, cmd)
	cfg.ConfigPath = path
	return nil
}

func applyProfileSettings(cfg *Config, profile *profileSettings, cmd *cobra.Command) {
	flags := cmd.Flags()

	if profile.Shards != nil && !flagChanged(flags, "shards") {
		cfg.Shards = *profile.Shards
	}
	if profile.SweepInterval != nil && !flagChanged(flags, "sweep-interval") {
		cfg.SweepInterval = *profile.SweepInterval
	}
	if profile.SweepBudget != nil && !flagChanged(flags, "sweep-budget") {
		cfg.SweepBudget = *profile.SweepBudget
	}
	if profile.AmortizedSweepRate != nil && !flagChanged(flags, "amortized-sweep-rate") {
		cfg.AmortizedSweepRate = *profile.AmortizedSweepRate
	}
	if profile.Notifications != nil && !flagChanged(flags, "notifications") {
		cfg.Notifications = *profile.Notifications
	}
	if profile.MaxHandles != nil && !flagChanged(flags, "max-handles") {
		cfg.MaxHandles = *profile.MaxHandles
	}
	if profile.Workers != nil && !flagChanged(flags, "workers") {
		cfg.Workers = *profile.Workers
	}
	if profile.Rounds != nil && !flagChanged(flags, "rounds") {
		cfg.Rounds = *profile.Rounds
	}
	if profile.Words != nil && !flagChanged(flags, "words") {
		cfg.Words = *profile.Words
	}
	if profile.Seed != nil && !flagChanged(flags, "seed") {
		cfg.Seed = *profile.Seed
	}
	if profile.WordlistPath != nil && !flagChanged(flags, "wordlist") {
		cfg.WordlistPath = strings.TrimSpace(*profile.WordlistPath)
	}
	if profile.Preload != nil && !flagChanged(flags, "preload") {
		cfg.Preload = profile.Preload.ToSlice()
	}
	if profile.OutputPath != nil && !flagChanged(flags, "output") {
		cfg.OutputPath = strings.TrimSpace(*profile.OutputPath)
	}
	if profile.Format != nil && !flagChanged(flags, "format") {
		cfg.Format = Format(strings.TrimSpace(*profile.Format))
	}
	if profile.JSONPretty != nil && !flagChanged(flags, "json-pretty") {
		cfg.JSONPretty = *profile.JSONPretty
	}
	if profile.MetricsAddr != nil && !flagChanged(flags, "metrics-addr") {
		cfg.MetricsAddr = strings.TrimSpace(*profile.MetricsAddr)
	}
	if profile.StatsInterval != nil && !flagChanged(flags, "stats-interval") {
		cfg.StatsInterval = *profile.StatsInterval
	}
	if profile.WebhookURL != nil && !flagChanged(flags, "webhook-url") {
		cfg.WebhookURL = strings.TrimSpace(*profile.WebhookURL)
	}
	if profile.WebhookSecret != nil && !flagChanged(flags, "webhook-secret") {
		cfg.WebhookSecret = strings.TrimSpace(*profile.WebhookSecret)
	}
	if profile.WebhookRate != nil && !flagChanged(flags, "webhook-rate") {
		cfg.WebhookRate = *profile.WebhookRate
	}
	if profile.Verbose != nil && !flagChanged(flags, "verbose") {
		cfg.Verbose = *profile.Verbose
	}
	if profile.Silent != nil && !flagChanged(flags, "silent") {
		cfg.Silent = *profile.Silent
	}
	if profile.LogLevel != nil && !flagChanged(flags, "log-level") {
		cfg.LogLevel = strings.TrimSpace(*profile.LogLevel)
	}
	if profile.LogFile != nil && !flagChanged(flags, "log-file") {
		cfg.LogFile = strings.TrimSpace(*profile.LogFile)
	}
	if profile.GCPercent != nil && !flagChanged(flags, "gc-percent") {
		cfg.GCPercent = *profile.GCPercent
	}
}

func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		abs := explicit
		if !filepath.IsAbs(abs) {
			if resolved, err := filepath.Abs(explicit); err == nil {
				abs = resolved
			}
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
			return "", fmt.Errorf("stat %s: %w", abs, err)
		}
		return abs, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, defaultConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	} else {
		return "", fmt.Errorf("getwd: %w", err)
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, defaultConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", nil
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	if flag == nil {
		return false
	}
	return flag.Changed
}
