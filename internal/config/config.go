package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sneaker-arb-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// LedgerConfig governs the offer ledger and staleness policy.
type LedgerConfig struct {
	// DefaultStaleness applies to any source without an override. Offers
	// unconfirmed for this long are swept to out-of-stock.
	DefaultStaleness time.Duration            `mapstructure:"default_staleness"`
	SourceStaleness  map[string]time.Duration `mapstructure:"source_staleness"`
}

// StalenessFor returns the staleness window for a source.
func (c LedgerConfig) StalenessFor(source string) time.Duration {
	if window, ok := c.SourceStaleness[strings.ToLower(source)]; ok && window > 0 {
		return window
	}
	return c.DefaultStaleness
}

// SchedulerConfig governs the alert scan worker pool.
type SchedulerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	Workers         int           `mapstructure:"workers"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// AlertingConfig defines webhook dispatch behaviour.
type AlertingConfig struct {
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	DeliveryRetention time.Duration `mapstructure:"delivery_retention"`
	CandidateLimit    int           `mapstructure:"candidate_limit"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// MaintenanceConfig schedules background sweep and prune jobs.
type MaintenanceConfig struct {
	SweepSpec string `mapstructure:"sweep_spec"`
	PruneSpec string `mapstructure:"prune_spec"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOLEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "solewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("ledger.default_staleness", "24h")

	v.SetDefault("scheduler.poll_interval", "30s")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x736f6c65))

	v.SetDefault("alerting.request_timeout", "30s")
	v.SetDefault("alerting.retry_attempts", 3)
	v.SetDefault("alerting.retry_backoff", "2s")
	v.SetDefault("alerting.delivery_retention", "168h")
	v.SetDefault("alerting.candidate_limit", 100)
	v.SetDefault("alerting.user_agent", "solewatcher/1.0")

	v.SetDefault("maintenance.sweep_spec", "0 */10 * * * *")
	v.SetDefault("maintenance.prune_spec", "0 30 3 * * *")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// normalize lower-cases staleness override keys so lookups and sweep
// exclusion lists match however the config file or environment cases a
// source name.
func (c *Config) normalize() {
	if len(c.Ledger.SourceStaleness) == 0 {
		return
	}
	sources := make(map[string]time.Duration, len(c.Ledger.SourceStaleness))
	for source, window := range c.Ledger.SourceStaleness {
		sources[strings.ToLower(source)] = window
	}
	c.Ledger.SourceStaleness = sources
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Ledger.DefaultStaleness <= 0 {
		return fmt.Errorf("ledger.default_staleness must be greater than zero")
	}
	for source, window := range c.Ledger.SourceStaleness {
		if window <= 0 {
			return fmt.Errorf("ledger.source_staleness.%s must be greater than zero", source)
		}
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be greater than zero")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be greater than zero")
	}
	if c.Alerting.RequestTimeout <= 0 {
		return fmt.Errorf("alerting.request_timeout must be greater than zero")
	}
	if c.Alerting.RetryAttempts <= 0 {
		return fmt.Errorf("alerting.retry_attempts must be greater than zero")
	}
	if c.Alerting.DeliveryRetention <= 0 {
		return fmt.Errorf("alerting.delivery_retention must be greater than zero")
	}
	if c.Alerting.CandidateLimit <= 0 {
		return fmt.Errorf("alerting.candidate_limit must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
