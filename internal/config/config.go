package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"goldwatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Market      MarketConfig      `mapstructure:"market"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Feishu      FeishuConfig      `mapstructure:"feishu"`
	AI          AIConfig          `mapstructure:"ai"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Server      ServerConfig      `mapstructure:"server"`
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

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// MarketConfig identifies the monitored symbol and its trading-day timezone.
type MarketConfig struct {
	Symbol        string `mapstructure:"symbol"`
	TZOffsetHours int    `mapstructure:"tz_offset_hours"`
}

// TZOffset returns the fixed local-day offset as a duration.
func (m MarketConfig) TZOffset() time.Duration {
	return time.Duration(m.TZOffsetHours) * time.Hour
}

// FeedConfig 描述金价行情源（panjia 逗号分隔报价）。
type FeedConfig struct {
	URL            string        `mapstructure:"url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Referer        string        `mapstructure:"referer"`
	Source         string        `mapstructure:"source"`
	PriceIndex     int           `mapstructure:"price_index"`
	XAUIndex       int           `mapstructure:"xau_index"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FeishuConfig 描述飞书群机器人 webhook。
type FeishuConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AIConfig configures the OpenAI-compatible report generator.
type AIConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MaintenanceConfig governs once-daily housekeeping.
type MaintenanceConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	CleanupHour   int `mapstructure:"cleanup_hour"`
	ReportHour    int `mapstructure:"report_hour"`
}

// Retention returns the retention horizon as a duration.
func (m MaintenanceConfig) Retention() time.Duration {
	return time.Duration(m.RetentionDays) * 24 * time.Hour
}

// ServerConfig sets up the HTTP API.
type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	CORSOrigin     string   `mapstructure:"cors_origin"`
	RequireReferer bool     `mapstructure:"require_referer"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDWATCHER")
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
	v.SetDefault("app.name", "goldwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x41553939))

	v.SetDefault("market.symbol", "AU")
	v.SetDefault("market.tz_offset_hours", 8)

	v.SetDefault("feed.url", "http://res.huangjinjiage.com.cn/panjia1.js")
	v.SetDefault("feed.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("feed.referer", "http://www.huangjinjiage.com.cn/")
	v.SetDefault("feed.source", "huangjinjiage.com.cn")
	v.SetDefault("feed.price_index", 1)
	v.SetDefault("feed.xau_index", 33)
	v.SetDefault("feed.request_timeout", "10s")

	v.SetDefault("feishu.request_timeout", "10s")

	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 1000)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.request_timeout", "60s")

	v.SetDefault("maintenance.retention_days", 360)
	v.SetDefault("maintenance.cleanup_hour", 0)
	v.SetDefault("maintenance.report_hour", 9)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.require_referer", false)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	if c.Market.TZOffsetHours < -12 || c.Market.TZOffsetHours > 14 {
		return fmt.Errorf("market.tz_offset_hours 超出合法范围")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.PriceIndex < 0 || c.Feed.XAUIndex < 0 {
		return fmt.Errorf("feed index 不能为负数")
	}
	if c.Maintenance.RetentionDays <= 0 {
		return fmt.Errorf("maintenance.retention_days must be greater than zero")
	}
	if c.Maintenance.CleanupHour < 0 || c.Maintenance.CleanupHour > 23 {
		return fmt.Errorf("maintenance.cleanup_hour must be an hour of day")
	}
	if c.Maintenance.ReportHour < 0 || c.Maintenance.ReportHour > 23 {
		return fmt.Errorf("maintenance.report_hour must be an hour of day")
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
