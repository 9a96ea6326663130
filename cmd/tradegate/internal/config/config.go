// Package config declares the daemon's flags, their environment fallbacks,
// and the log handler assembly.
package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	tglog "github.com/marqetfi/tradegate/log"
)

type AppConfig struct {
	StoragePath    string
	HTTPListen     string
	PublicOrigin   string
	EnvFile        string
	DepositWorkers int
	AuthRequired   bool

	LogLevel      string
	LogFormatJSON bool
	LogFile       string
	LogComponents []string

	DepositRetryBase time.Duration
	DepositRetryMax  time.Duration
}

func DefaultConfig() AppConfig {
	return AppConfig{
		StoragePath:      "tradegate.sqlite3",
		HTTPListen:       ":8080",
		EnvFile:          "",
		DepositWorkers:   5,
		AuthRequired:     false,
		LogLevel:         "info",
		LogFormatJSON:    false,
		DepositRetryBase: 1 * time.Second,
		DepositRetryMax:  2 * time.Minute,
	}
}

// NewConfigFlagSet declares the flags against the provided struct but does not parse.
func NewConfigFlagSet(cfg *AppConfig) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tradegate", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "SQLite storage path (env: TRADEGATE_STORAGE_PATH)")
	fs.StringVar(&cfg.HTTPListen, "http-listen", cfg.HTTPListen, "HTTP listen address (env: TRADEGATE_HTTP_LISTEN)")
	fs.StringVar(&cfg.PublicOrigin, "public-origin", cfg.PublicOrigin, "Public origin(s) allowed by CORS, comma separated (env: TRADEGATE_PUBLIC_ORIGIN)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file loaded before reading the environment (env: TRADEGATE_ENV_FILE)")
	fs.IntVar(&cfg.DepositWorkers, "deposit-workers", cfg.DepositWorkers, "Number of deposit conversion workers (env: TRADEGATE_DEPOSIT_WORKERS)")
	fs.BoolVar(&cfg.AuthRequired, "auth-required", cfg.AuthRequired, "Require bearer-token auth on API routes (env: TRADEGATE_AUTH_REQUIRED)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (env: TRADEGATE_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogFormatJSON, "log-json", cfg.LogFormatJSON, "Emit logs as JSON (env: TRADEGATE_LOG_JSON)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write JSON logs to this file (env: TRADEGATE_LOG_FILE)")
	fs.StringSliceVar(&cfg.LogComponents, "log-components", cfg.LogComponents, "Only emit logs from these components (env: TRADEGATE_LOG_COMPONENTS)")
	fs.DurationVar(&cfg.DepositRetryBase, "deposit-retry-base", cfg.DepositRetryBase, "Base backoff between conversion retries (env: TRADEGATE_DEPOSIT_RETRY_BASE)")
	fs.DurationVar(&cfg.DepositRetryMax, "deposit-retry-max", cfg.DepositRetryMax, "Max backoff between conversion retries (env: TRADEGATE_DEPOSIT_RETRY_MAX)")

	return fs
}

// ApplyEnvDefaults inspects flags that were left unset and pulls from env.
func ApplyEnvDefaults(fs *pflag.FlagSet, cfg *AppConfig) error {
	flagSet := map[string]struct{}{}
	fs.Visit(func(f *pflag.Flag) { flagSet[f.Name] = struct{}{} })

	setString := func(name, envKey string, target *string) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok && v != "" {
			*target = v
		}
	}
	setInt := func(name, envKey string, target *int) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				*target = parsed
			}
		}
	}
	setBool := func(name, envKey string, target *bool) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*target = parsed
			}
		}
	}
	setDuration := func(name, envKey string, target *time.Duration) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok {
			if parsed, err := time.ParseDuration(v); err == nil {
				*target = parsed
			}
		}
	}

	setString("storage-path", "TRADEGATE_STORAGE_PATH", &cfg.StoragePath)
	setString("http-listen", "TRADEGATE_HTTP_LISTEN", &cfg.HTTPListen)
	setString("public-origin", "TRADEGATE_PUBLIC_ORIGIN", &cfg.PublicOrigin)
	setString("env-file", "TRADEGATE_ENV_FILE", &cfg.EnvFile)
	setInt("deposit-workers", "TRADEGATE_DEPOSIT_WORKERS", &cfg.DepositWorkers)
	setBool("auth-required", "TRADEGATE_AUTH_REQUIRED", &cfg.AuthRequired)
	setString("log-level", "TRADEGATE_LOG_LEVEL", &cfg.LogLevel)
	setBool("log-json", "TRADEGATE_LOG_JSON", &cfg.LogFormatJSON)
	setString("log-file", "TRADEGATE_LOG_FILE", &cfg.LogFile)
	setDuration("deposit-retry-base", "TRADEGATE_DEPOSIT_RETRY_BASE", &cfg.DepositRetryBase)
	setDuration("deposit-retry-max", "TRADEGATE_DEPOSIT_RETRY_MAX", &cfg.DepositRetryMax)

	if _, ok := flagSet["log-components"]; !ok {
		if v, isSet := os.LookupEnv("TRADEGATE_LOG_COMPONENTS"); isSet && v != "" {
			if err := fs.Set("log-components", v); err != nil {
				return fmt.Errorf("parsing TRADEGATE_LOG_COMPONENTS: %w", err)
			}
		}
	}

	return nil
}

func ValidateConfig(cfg AppConfig) error {
	if cfg.StoragePath == "" {
		return fmt.Errorf("storage-path must not be empty")
	}
	if cfg.DepositWorkers < 1 {
		return fmt.Errorf("deposit-workers must be at least 1, got %d", cfg.DepositWorkers)
	}
	if cfg.DepositRetryBase <= 0 || cfg.DepositRetryMax < cfg.DepositRetryBase {
		return fmt.Errorf("deposit retry backoff window %s..%s is invalid", cfg.DepositRetryBase, cfg.DepositRetryMax)
	}
	return nil
}

// GetLogHandler assembles the slog handler stack: console (text or JSON),
// optional JSON file sink, optional component allowlist.
func GetLogHandler(cfg AppConfig) (slog.Handler, func() error) {
	var level slog.Level
	if cfg.LogLevel == "" {
		level = slog.LevelInfo
	} else if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
		log.Printf("unknown log level %q, defaulting to info", cfg.LogLevel)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if cfg.LogFormatJSON {
		console = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		console = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	closer := func() error { return nil }
	handler := console

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("opening log file %q: %v", cfg.LogFile, err)
		} else {
			handler = tglog.NewFanoutHandler(console, slog.NewJSONHandler(f, handlerOpts))
			closer = f.Close
		}
	}

	return tglog.NewComponentFilterHandler(handler, cfg.LogComponents), closer
}
