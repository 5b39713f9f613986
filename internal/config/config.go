// Package config loads application configuration from environment variables
// and the repositories file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// DefaultReminderMessage is posted on corrective pull requests that reference nothing.
const DefaultReminderMessage = "Hi! :wave: If this is a bug fix, please mention the ticket it resolves in a comment so recovery time can be measured. :pray:"

// DefaultListenAddr is where the HTTP API listens when DORA_LISTEN_ADDR is unset.
const DefaultListenAddr = "127.0.0.1:8080"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken      string
	GitHubOwner      string
	RepositoriesFile string
	DBPath           string

	Scheme        model.ResolutionScheme
	ProjectKey    string
	JiraURL       string
	TokenEndpoint string
	TokenScope    string

	PullRequestLimit int
	ScanConcurrency  int
	JiraConcurrency  int
	JiraRate         float64

	TeamRoster      string
	ReminderTeams   []string
	ReminderMessage string

	RunInterval time.Duration
	ListenAddr  string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a validated Config.
// Only syntax is checked here; Validate checks what a pipeline run needs.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:      os.Getenv("DORA_GITHUB_TOKEN"),
		GitHubOwner:      os.Getenv("DORA_GITHUB_OWNER"),
		RepositoriesFile: envOr("DORA_REPOSITORIES_FILE", "repositories.yaml"),
		DBPath:           envOr("DORA_DB_PATH", "dorametrics.db"),
		ProjectKey:       envOr("DORA_PROJECT_KEY", "FAGSYSTEM"),
		JiraURL:          os.Getenv("DORA_JIRA_URL"),
		TokenEndpoint:    os.Getenv("DORA_TOKEN_ENDPOINT"),
		TokenScope:       os.Getenv("DORA_TOKEN_SCOPE"),
		TeamRoster:       os.Getenv("DORA_TEAM_ROSTER"),
		ReminderTeams:    splitList(os.Getenv("DORA_REMINDER_TEAMS")),
		ReminderMessage:  envOr("DORA_REMINDER_MESSAGE", DefaultReminderMessage),
		ListenAddr:       envOr("DORA_LISTEN_ADDR", DefaultListenAddr),
		LogFormat:        envOr("DORA_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Scheme, err = model.ParseResolutionScheme(envOr("DORA_RESOLUTION_SCHEME", string(model.SchemeTicket))); err != nil {
		return nil, fmt.Errorf("DORA_RESOLUTION_SCHEME: %w", err)
	}
	if cfg.PullRequestLimit, err = positiveInt("DORA_PULL_REQUEST_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.ScanConcurrency, err = positiveInt("DORA_SCAN_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.JiraConcurrency, err = positiveInt("DORA_JIRA_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	cfg.JiraRate = 5
	if v, ok := os.LookupEnv("DORA_JIRA_RATE"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("DORA_JIRA_RATE must be a positive number, got %q", v)
		}
		cfg.JiraRate = parsed
	}

	cfg.RunInterval = time.Hour
	if v, ok := os.LookupEnv("DORA_RUN_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DORA_RUN_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed < time.Minute {
			return nil, fmt.Errorf("DORA_RUN_INTERVAL must be at least 1m, got %s", parsed)
		}
		cfg.RunInterval = parsed
	}

	if v, ok := os.LookupEnv("DORA_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("DORA_LOG_LEVEL: %w", err)
		}
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("DORA_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// Validate reports every setting missing for a pipeline run.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHubToken == "" {
		errs = append(errs, errors.New("DORA_GITHUB_TOKEN is required"))
	}
	if c.GitHubOwner == "" {
		errs = append(errs, errors.New("DORA_GITHUB_OWNER is required"))
	}
	if c.Scheme == model.SchemeTicket {
		if c.JiraURL == "" {
			errs = append(errs, errors.New("DORA_JIRA_URL is required for the ticket scheme"))
		}
		if c.TokenEndpoint == "" {
			errs = append(errs, errors.New("DORA_TOKEN_ENDPOINT is required for the ticket scheme"))
		}
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from the configured level and format.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
