// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pathwatch/pathwatch-server/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Watch   WatchConfig
	Monitor MonitorConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// WatchConfig holds watch source configuration.
type WatchConfig struct {
	// Paths are the roots handed to the watch source at startup. May be
	// empty; registrations can still be driven programmatically.
	Paths []string `validate:"dive,required"`
	// IgnorePatterns are glob patterns for paths the watch source drops.
	IgnorePatterns []string
	// Debounce is the settle window for create/write bursts (default: 100ms).
	Debounce time.Duration `validate:"min=0"`
}

// MonitorConfig holds coordinator configuration.
type MonitorConfig struct {
	// CallbackConcurrency is the maximum number of callbacks running at
	// once (default: 4). The monitor rejects values below 1.
	CallbackConcurrency int `validate:"min=1"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	watchPaths := flag.String("watch-paths", "", "Comma-separated paths to watch at startup")
	ignorePatterns := flag.String("ignore-patterns", "", "Comma-separated glob patterns to ignore")
	debounce := flag.String("debounce", "", "Settle window for create/write bursts (default: 100ms)")
	concurrency := flag.String("callback-concurrency", "", "Max concurrent callback executions (default: 4)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Watch: WatchConfig{
			Paths:          splitList(getConfigValue(*watchPaths, "WATCH_PATHS", "")),
			IgnorePatterns: splitList(getConfigValue(*ignorePatterns, "IGNORE_PATTERNS", "")),
		},
		Monitor: MonitorConfig{
			CallbackConcurrency: getIntConfigValue(*concurrency, "CALLBACK_CONCURRENCY", 4),
		},
	}

	// Parse the debounce window.
	debounceStr := getConfigValue(*debounce, "DEBOUNCE", "100ms")
	debounceDuration, err := time.ParseDuration(debounceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid debounce %q: %w", debounceStr, err)
	}
	cfg.Watch.Debounce = debounceDuration

	// Expand and normalize watch paths.
	if err := cfg.expandWatchPaths(); err != nil {
		return nil, fmt.Errorf("invalid watch path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	v := validation.New()
	if err := v.Validate(c.App); err != nil {
		return err
	}
	if err := v.Validate(c.Logger); err != nil {
		return err
	}
	if err := v.Validate(c.Watch); err != nil {
		return err
	}
	return v.Validate(c.Monitor)
}

// expandWatchPaths expands ~ and makes every watch path absolute.
func (c *Config) expandWatchPaths() error {
	for i, p := range c.Watch.Paths {
		expanded, err := expandPath(p)
		if err != nil {
			return err
		}
		c.Watch.Paths[i] = expanded
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// splitList splits a comma-separated value into trimmed, non-empty items.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
