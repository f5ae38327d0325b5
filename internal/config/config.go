package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AgentConfig is one entry of the static agent registry.
type AgentConfig struct {
	Name    string
	BaseURL string
}

// Config holds the full application configuration, enumerating every flag
// from spec.md §6.
type Config struct {
	// Server
	Port           int
	Host           string
	DevMode        bool
	AllowedOrigins []string

	// Agent fleet
	Agents           []AgentConfig
	AgentTimeout     time.Duration
	RecoveryThreshold int

	// Smart Cache
	CacheTTL time.Duration

	// Persisted stores
	PhaseDataFile       string
	VSDataFile          string
	VersusDataFile      string
	TradeHistoryFile    string

	// Auth
	SharedSecret   string
	LoginPassword  string
	TokenTTL       time.Duration

	// Feature gates
	TradingEnabled bool
	VersusEnabled  bool

	// Scheduler
	SchedulerInterval time.Duration

	// Sinks (optional)
	SpreadsheetBucket    string
	SpreadsheetRegion    string
	SpreadsheetKeyPrefix string
	ChatNotifyURL        string
	AuditLogPath         string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables (and an optional
// .env file), then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8080),
		Host:              getEnv("HOST", "0.0.0.0"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		Agents:            parseAgents(getEnv("AGENTS_JSON", "[]")),
		AgentTimeout:      getEnvAsDuration("AGENT_TIMEOUT_SECONDS", 10*time.Second),
		RecoveryThreshold: getEnvAsInt("RECOVERY_THRESHOLD", 2),
		CacheTTL:          getEnvAsDuration("CACHE_TTL_SECONDS", 60*time.Second),

		PhaseDataFile:    getEnv("PHASE_DATA_FILE", "data/phases.json"),
		VSDataFile:       getEnv("VS_DATA_FILE", "data/vs_groups.json"),
		VersusDataFile:   getEnv("VERSUS_DATA_FILE", "data/versus.json"),
		TradeHistoryFile: getEnv("TRADE_HISTORY_FILE", "data/trade_history.json"),

		SharedSecret:  getEnv("AUTH_SHARED_SECRET", ""),
		LoginPassword: getEnv("LOGIN_PASSWORD", ""),
		TokenTTL:      getEnvAsDuration("TOKEN_TTL_HOURS", 24*time.Hour),

		TradingEnabled: getEnvAsBool("TRADING_ENABLED", false),
		VersusEnabled:  getEnvAsBool("VERSUS_ENABLED", false),

		SchedulerInterval: getEnvAsDuration("SCHEDULER_INTERVAL_SECONDS", 30*time.Second),

		SpreadsheetBucket:    getEnv("SPREADSHEET_BUCKET", ""),
		SpreadsheetRegion:    getEnv("SPREADSHEET_REGION", "us-east-1"),
		SpreadsheetKeyPrefix: getEnv("SPREADSHEET_KEY_PREFIX", "accounts-export"),
		ChatNotifyURL:        getEnv("CHAT_NOTIFY_WS_URL", ""),
		AuditLogPath:         getEnv("AUDIT_LOG_PATH", "data/audit.db"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and internally
// consistent.
func (c *Config) Validate() error {
	if c.SharedSecret == "" {
		return fmt.Errorf("AUTH_SHARED_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}
	for _, a := range c.Agents {
		if a.Name == "" || a.BaseURL == "" {
			return fmt.Errorf("agent entries require both name and url")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAgents reads AGENTS_JSON, a JSON array of {"name","url"} objects,
// matching the original source's VPS_AGENTS_JSON shape.
func parseAgents(raw string) []AgentConfig {
	type entry struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	var entries []entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	out := make([]AgentConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, AgentConfig{Name: e.Name, BaseURL: e.URL})
	}
	return out
}
