package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

func (f *globalFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.ConfigPath, "config", "c",
		getEnv("TREMOR_CONFIG", "tremor.yaml"),
		"Path to configuration file (env: TREMOR_CONFIG)")

	fs.StringVar(&f.LogLevel, "log-level",
		getEnv("TREMOR_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: TREMOR_LOG_LEVEL)")

	fs.StringVar(&f.LogFormat, "log-format",
		getEnv("TREMOR_LOG_FORMAT", "json"),
		"Log format: json, text (env: TREMOR_LOG_FORMAT)")

	fs.DurationVar(&f.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("TREMOR_SHUTDOWN_TIMEOUT", 5*time.Second),
		"Grace period of each shutdown phase (env: TREMOR_SHUTDOWN_TIMEOUT)")
}

func (f *globalFlags) validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, f.LogLevel) {
		return fmt.Errorf("invalid log level: %s", f.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, f.LogFormat) {
		return fmt.Errorf("invalid log format: %s", f.LogFormat)
	}
	if f.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", f.ShutdownTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
