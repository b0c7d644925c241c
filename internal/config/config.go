// Package config provides configuration for the standup engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the standup engine configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int
	RPCPort      int

	// Database
	DatabaseURL string

	// Standup settings
	Title          string
	Timezone       string
	Prompt         string
	RosterPath     string
	Roles          []string
	OrchestratorID string
	Principals     []string

	// Timeouts
	AgentTimeout       time.Duration
	StaleRunAfter      time.Duration
	StaleSweepInterval time.Duration

	// Escalation
	Notifier     string
	IngressURL   string
	RedisAddr    string
	RedisChannel string
	PolicyPath   string

	// Logging and tracing
	LogMode      string
	OtelEnabled  bool
	OtelEndpoint string
	OtelInsecure bool

	// Roster is the parsed roster file, if any.
	Roster *Roster
}

// Load reads an optional .env file, then environment variables, then the roster file.
// An empty envFile loads ./.env when present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		InternalPort:       getEnvInt("INTERNAL_PORT", 8081),
		RPCPort:            getEnvInt("RPC_PORT", 8082),
		DatabaseURL:        getEnv("DATABASE_URL", "file:standup.db?cache=shared&mode=rwc"),
		Title:              getEnv("STANDUP_TITLE", "Daily standup"),
		Timezone:           getEnv("STANDUP_TIMEZONE", "UTC"),
		Prompt:             getEnv("STANDUP_PROMPT", ""),
		RosterPath:         getEnv("STANDUP_ROSTER", ""),
		Roles:              getEnvList("STANDUP_ROLES"),
		OrchestratorID:     getEnv("STANDUP_ORCHESTRATOR", "orchestrator"),
		Principals:         getEnvList("STANDUP_PRINCIPALS"),
		AgentTimeout:       time.Duration(getEnvInt("AGENT_TIMEOUT_MS", 30000)) * time.Millisecond,
		StaleRunAfter:      time.Duration(getEnvInt("STALE_RUN_AFTER_MS", 7200000)) * time.Millisecond,
		StaleSweepInterval: time.Duration(getEnvInt("STALE_SWEEP_INTERVAL_MS", 60000)) * time.Millisecond,
		Notifier:           strings.ToLower(getEnv("ESCALATION_NOTIFIER", "none")),
		IngressURL:         getEnv("INGRESS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisChannel:       getEnv("REDIS_CHANNEL", "standup-escalations"),
		PolicyPath:         getEnv("ESCALATION_POLICY_FILE", ""),
		LogMode:            getEnv("LOG_MODE", "development"),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelInsecure:       getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if cfg.RosterPath != "" {
		roster, err := LoadRoster(cfg.RosterPath)
		if err != nil {
			return nil, err
		}
		cfg.applyRoster(roster)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid STANDUP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// applyRoster fills settings the environment left unset.
func (c *Config) applyRoster(r *Roster) {
	c.Roster = r
	if len(c.Roles) == 0 {
		c.Roles = r.Roles
	}
	if os.Getenv("STANDUP_ORCHESTRATOR") == "" && r.Orchestrator != "" {
		c.OrchestratorID = r.Orchestrator
	}
	if len(c.Principals) == 0 {
		c.Principals = r.Principals
	}
	if os.Getenv("STANDUP_TITLE") == "" && r.Title != "" {
		c.Title = r.Title
	}
}

// Warnings lists settings that load fine but leave the engine unable to run.
func (c *Config) Warnings() []string {
	var out []string
	if len(c.Roles) == 0 {
		out = append(out, "no roles configured: set STANDUP_ROLES or STANDUP_ROSTER, every run will fail with no eligible participants")
	}
	return out
}

// Location returns the configured standup timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today resolves the calendar date of "now" in the standup timezone.
func (c *Config) Today(now time.Time) string {
	return now.In(c.Location()).Format("2006-01-02")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
