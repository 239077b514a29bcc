package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"tracker/internal/core"
)

// Backends understood by DATA_BACKEND.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendCSV, BackendSQLite}

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend   string
	LedgerCSVPath string
	SQLiteDBPath  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export
	GoogleSpreadsheetID string
	ExportInterval      time.Duration

	// Reporting
	InvestmentCategories []string
	Palette              Palette

	LogLevel string
	CacheTTL time.Duration

	// ConfigFile names an optional YAML file, see FileConfig.
	ConfigFile string
}

// Palette holds the chart colors for each transaction kind.
type Palette struct {
	Earning    string
	Expense    string
	Investment string
}

// ColorFor returns the color assigned to kind.
func (p Palette) ColorFor(kind core.Kind) string {
	switch kind {
	case core.KindEarning:
		return p.Earning
	case core.KindInvestment:
		return p.Investment
	default:
		return p.Expense
	}
}

func DefaultPalette() Palette {
	return Palette{
		Earning:    "#2ca02c",
		Expense:    "#d62728",
		Investment: "#1f77b4",
	}
}

func Load() *Config {
	defaults := DefaultPalette()
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", BackendCSV),
		LedgerCSVPath: getEnv("LEDGER_CSV_PATH", "./data/ledger.csv"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/tracker.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_datasets"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ExportInterval:      getEnvDuration("EXPORT_INTERVAL", 0),

		InvestmentCategories: getEnvList("INVESTMENT_CATEGORIES", nil),
		Palette: Palette{
			Earning:    getEnv("COLOR_EARNING", defaults.Earning),
			Expense:    getEnv("COLOR_EXPENSE", defaults.Expense),
			Investment: getEnv("COLOR_INVESTMENT", defaults.Investment),
		},

		LogLevel: getEnv("LOG_LEVEL", "info"),
		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		ConfigFile: getEnv("TRACKER_CONFIG", ""),
	}

	return cfg
}

// Investments returns the configured investment categories as a set.
func (c *Config) Investments() core.CategorySet {
	return core.NewCategorySet(c.InvestmentCategories...)
}

// StorePath returns the file backing the selected backend.
func (c *Config) StorePath() string {
	if c.DataBackend == BackendSQLite {
		return c.SQLiteDBPath
	}
	return c.LedgerCSVPath
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendCSV:
		if c.LedgerCSVPath == "" {
			errors = append(errors, "ledger CSV path cannot be empty when using csv backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must not be negative", c.ExportInterval))
	} else if c.ExportInterval > 0 && c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	for name, color := range map[string]string{
		"COLOR_EARNING":    c.Palette.Earning,
		"COLOR_EXPENSE":    c.Palette.Expense,
		"COLOR_INVESTMENT": c.Palette.Investment,
	} {
		if !hexColor.MatchString(color) {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a hex color like #1f77b4", name, color))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
