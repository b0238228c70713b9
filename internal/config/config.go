package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/openhours/workcheck/internal/domain/entity"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Check    CheckConfig    `mapstructure:"check"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// ImportConfig bounds the import pipeline and sets per-batch defaults.
type ImportConfig struct {
	MaxRows           int    `mapstructure:"max_rows"`
	MaxFileSize       int64  `mapstructure:"max_file_size"`
	DuplicateStrategy string `mapstructure:"duplicate_strategy"`
	StrictValidation  bool   `mapstructure:"strict_validation"`
}

// CheckConfig holds the hour thresholds consumed read-only by the compliance
// checker, plus checker invocation limits and the scheduled-check settings.
type CheckConfig struct {
	StandardHours      float64       `mapstructure:"standard_hours"`
	MinHours           float64       `mapstructure:"min_hours"`
	MaxOvertime        float64       `mapstructure:"max_overtime"`
	MaxMonthlyOvertime float64       `mapstructure:"max_monthly_overtime"`
	OvertimeCategory   string        `mapstructure:"overtime_category"`
	MaxRangeDays       int           `mapstructure:"max_range_days"`
	ScheduleEnabled    bool          `mapstructure:"schedule_enabled"`
	ScheduleInterval   time.Duration `mapstructure:"schedule_interval"`
	ScheduleWindowDays int           `mapstructure:"schedule_window_days"`
}

// CalendarConfig configures the external holiday provider.
type CalendarConfig struct {
	ProviderURL string        `mapstructure:"provider_url"`
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/workcheck.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("import.max_rows", 1000)
	viper.SetDefault("import.max_file_size", int64(10*1024*1024))
	viper.SetDefault("import.duplicate_strategy", "skip")
	viper.SetDefault("import.strict_validation", false)

	viper.SetDefault("check.standard_hours", 8.0)
	viper.SetDefault("check.min_hours", 4.0)
	viper.SetDefault("check.max_overtime", 4.0)
	viper.SetDefault("check.max_monthly_overtime", 80.0)
	viper.SetDefault("check.overtime_category", "Overtime Hours")
	viper.SetDefault("check.max_range_days", 90)
	viper.SetDefault("check.schedule_enabled", false)
	viper.SetDefault("check.schedule_interval", 24*time.Hour)
	viper.SetDefault("check.schedule_window_days", 7)

	viper.SetDefault("calendar.provider_url", "")
	viper.SetDefault("calendar.sync_timeout", 10*time.Second)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	viper.BindEnv("database.path", "WORKCHECK_DB_PATH")
	viper.BindEnv("calendar.provider_url", "WORKCHECK_HOLIDAY_PROVIDER_URL")
	viper.BindEnv("server.port", "WORKCHECK_PORT")
	viper.BindEnv("logger.level", "WORKCHECK_LOG_LEVEL")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !entity.DuplicateStrategy(c.Import.DuplicateStrategy).Valid() {
		return fmt.Errorf("import.duplicate_strategy must be %q or %q", entity.DuplicateSkip, entity.DuplicateCover)
	}
	if c.Import.MaxRows <= 0 {
		return fmt.Errorf("import.max_rows must be positive")
	}
	if c.Import.MaxFileSize <= 0 {
		return fmt.Errorf("import.max_file_size must be positive")
	}
	if c.Check.MinHours < 0 || c.Check.StandardHours <= 0 || c.Check.MaxOvertime < 0 {
		return fmt.Errorf("check thresholds must be non-negative with positive standard_hours")
	}
	if c.Check.MinHours > c.Check.StandardHours {
		return fmt.Errorf("check.min_hours cannot exceed check.standard_hours")
	}
	if c.Check.MaxRangeDays <= 0 {
		return fmt.Errorf("check.max_range_days must be positive")
	}
	if c.Check.ScheduleEnabled && c.Check.ScheduleInterval <= 0 {
		return fmt.Errorf("check.schedule_interval must be positive when scheduling is enabled")
	}
	return nil
}
