package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/executor"
	"github.com/aqasim81/migrate-gate/internal/ledger"
)

// Default values for configuration fields. Ledger, pool and wait defaults
// come from the packages that own them.
const (
	DefaultFile          = "migrate.yml"
	DefaultMigrationsDir = "./migrations"
	DefaultLockMode      = string(ledger.LockTable)
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
// Zero timeouts mean "no limit".
type Config struct {
	DatabaseURL      string
	MigrationsDir    string
	LedgerTable      string
	LockMode         string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	WaitInterval     time.Duration
	WaitTimeout      time.Duration
	MaxConns         int
	MinConns         int
	AcquireTimeout   time.Duration
	ValidateSQL      bool
	LogLevel         string
	LogFormat        string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	MigrationsDir    string `yaml:"migrations_dir"`
	LedgerTable      string `yaml:"ledger_table"`
	LockMode         string `yaml:"lock_mode"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	WaitInterval     string `yaml:"wait_interval"`
	WaitTimeout      string `yaml:"wait_timeout"`
	MaxConns         *int   `yaml:"max_conns"`
	MinConns         *int   `yaml:"min_conns"`
	AcquireTimeout   string `yaml:"acquire_timeout"`
	ValidateSQL      *bool  `yaml:"validate_sql"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
}

// New returns a Config populated with default values.
func New() *Config {
	pool := database.DefaultPoolConfig()

	return &Config{
		MigrationsDir:  DefaultMigrationsDir,
		LedgerTable:    ledger.DefaultTable,
		LockMode:       DefaultLockMode,
		WaitInterval:   executor.DefaultWaitInterval,
		MaxConns:       int(pool.MaxConns),
		MinConns:       int(pool.MinConns),
		AcquireTimeout: pool.AcquireTimeout,
		ValidateSQL:    true,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.LedgerTable, raw.LedgerTable)
	setString(&cfg.LockMode, raw.LockMode)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogFormat, raw.LogFormat)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"lock_timeout", raw.LockTimeout, &cfg.LockTimeout},
		{"statement_timeout", raw.StatementTimeout, &cfg.StatementTimeout},
		{"wait_interval", raw.WaitInterval, &cfg.WaitInterval},
		{"wait_timeout", raw.WaitTimeout, &cfg.WaitTimeout},
		{"acquire_timeout", raw.AcquireTimeout, &cfg.AcquireTimeout},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}

		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %q: %w", d.key, d.raw, err)
		}

		*d.dst = v
	}

	if raw.MaxConns != nil {
		cfg.MaxConns = *raw.MaxConns
	}

	if raw.MinConns != nil {
		cfg.MinConns = *raw.MinConns
	}

	if raw.ValidateSQL != nil {
		cfg.ValidateSQL = *raw.ValidateSQL
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
// Values that fail to parse leave the field unchanged.
func MergeEnv(cfg *Config) {
	envString("MIGRATE_DATABASE_URL", &cfg.DatabaseURL)
	envString("MIGRATE_MIGRATIONS_DIR", &cfg.MigrationsDir)
	envString("MIGRATE_LEDGER_TABLE", &cfg.LedgerTable)
	envString("MIGRATE_LOCK_MODE", &cfg.LockMode)
	envString("MIGRATE_LOG_LEVEL", &cfg.LogLevel)
	envString("MIGRATE_LOG_FORMAT", &cfg.LogFormat)

	envDuration("MIGRATE_LOCK_TIMEOUT", &cfg.LockTimeout)
	envDuration("MIGRATE_STATEMENT_TIMEOUT", &cfg.StatementTimeout)
	envDuration("MIGRATE_WAIT_INTERVAL", &cfg.WaitInterval)
	envDuration("MIGRATE_WAIT_TIMEOUT", &cfg.WaitTimeout)
	envDuration("MIGRATE_ACQUIRE_TIMEOUT", &cfg.AcquireTimeout)

	envInt("MIGRATE_MAX_CONNS", &cfg.MaxConns)
	envInt("MIGRATE_MIN_CONNS", &cfg.MinConns)

	if v := os.Getenv("MIGRATE_VALIDATE_SQL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ValidateSQL = b
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required", ErrInvalidConfig)
	case strings.TrimSpace(c.LedgerTable) == "":
		return fmt.Errorf("%w: ledger_table must not be empty", ErrInvalidConfig)
	case c.LockMode != "table" && c.LockMode != "advisory":
		return fmt.Errorf("%w: lock_mode %q must be \"table\" or \"advisory\"", ErrInvalidConfig, c.LockMode)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q must be \"text\" or \"json\"", ErrInvalidConfig, c.LogFormat)
	case c.WaitInterval <= 0:
		return fmt.Errorf("%w: wait_interval must be positive", ErrInvalidConfig)
	case c.MaxConns <= 0 || c.MaxConns > math.MaxInt32:
		return fmt.Errorf("%w: max_conns must be between 1 and %d", ErrInvalidConfig, math.MaxInt32)
	case c.MinConns < 0 || c.MinConns > c.MaxConns:
		return fmt.Errorf("%w: min_conns must be between 0 and max_conns (%d)", ErrInvalidConfig, c.MaxConns)
	case c.LockTimeout < 0, c.StatementTimeout < 0, c.WaitTimeout < 0, c.AcquireTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}

	return nil
}
