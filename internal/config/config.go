package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"witswatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Market    MarketConfig    `mapstructure:"market"`
	FTP       FTPConfig       `mapstructure:"ftp"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Retention RetentionConfig `mapstructure:"retention"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MarketConfig describes how interval files are located and read.
type MarketConfig struct {
	Location   string        `mapstructure:"location"`
	PriceLimit float64       `mapstructure:"price_limit"`
	TimeLag    time.Duration `mapstructure:"time_lag"`
}

// FTPConfig covers the market data server.
type FTPConfig struct {
	Host      string        `mapstructure:"host"`
	User      string        `mapstructure:"user"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ProxyHost string        `mapstructure:"proxy_host"`
	ProxyPort int           `mapstructure:"proxy_port"`
}

// FetchConfig tunes the fetch job.
type FetchConfig struct {
	RetryBacklog bool `mapstructure:"retry_backlog"`
	BacklogMax   int  `mapstructure:"backlog_max"`
}

// StorageConfig selects where rolling tables live.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RetentionConfig bounds every rolling table.
type RetentionConfig struct {
	Main  Window `mapstructure:"main"`
	Stats Window `mapstructure:"stats"`
}

// Window is a retention span expressed in days and hours.
type Window struct {
	Days  int `mapstructure:"days"`
	Hours int `mapstructure:"hours"`
}

// Duration returns the span as a time.Duration.
func (w Window) Duration() time.Duration {
	return time.Duration(w.Days)*24*time.Hour + time.Duration(w.Hours)*time.Hour
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	NodeTrigger   float64        `mapstructure:"node_trigger"`
	IslandTrigger float64        `mapstructure:"island_trigger"`
	Source        string         `mapstructure:"source"`
	MaxChars      int            `mapstructure:"max_chars"`
	Channels      []string       `mapstructure:"channels"`
	SMTP          SMTPConfig     `mapstructure:"smtp"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// Alert snapshot sources.
const (
	SourceInterval      = "interval"
	SourceTradingPeriod = "trading_period"
)

// SMTPConfig describes the mail relay and the phonebook of recipients.
type SMTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Sender       string        `mapstructure:"sender"`
	Phonebook    string        `mapstructure:"phonebook"`
	AddressField int           `mapstructure:"address_field"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets derived file behaviour.
type ExportConfig struct {
	Dir           string `mapstructure:"dir"`
	PNG           bool   `mapstructure:"png"`
	MaxDataPoints int    `mapstructure:"max_data_points"`
}

// SchedulerConfig governs the cadence of the run command.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Offset          time.Duration `mapstructure:"offset"`
	AlertEvery      int           `mapstructure:"alert_every"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WITSWATCH")
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
	v.SetDefault("app.name", "witswatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("market.location", "Pacific/Auckland")
	v.SetDefault("market.price_limit", 400000.0)
	v.SetDefault("market.time_lag", "15m")

	v.SetDefault("ftp.host", "ftpakl.electricitywits.co.nz")
	v.SetDefault("ftp.timeout", "20s")

	v.SetDefault("fetch.retry_backlog", true)
	v.SetDefault("fetch.backlog_max", 12)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.dir", "data")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("retention.main.days", 7)
	v.SetDefault("retention.main.hours", 0)
	v.SetDefault("retention.stats.days", 0)
	v.SetDefault("retention.stats.hours", 24)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.node_trigger", 1000.0)
	v.SetDefault("alerting.island_trigger", 500.0)
	v.SetDefault("alerting.source", SourceInterval)
	v.SetDefault("alerting.max_chars", 160)
	v.SetDefault("alerting.channels", []string{"smtp"})
	v.SetDefault("alerting.smtp.port", 25)
	v.SetDefault("alerting.smtp.address_field", 1)
	v.SetDefault("alerting.smtp.timeout", "20s")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.png", true)
	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x57495453))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.offset", "30s")
	v.SetDefault("scheduler.alert_every", 1)

	v.SetDefault("metrics.job", "witswatch")
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
	if _, err := time.LoadLocation(c.Market.Location); err != nil {
		return fmt.Errorf("market.location %q: %w", c.Market.Location, err)
	}
	if c.Market.PriceLimit <= 0 {
		return fmt.Errorf("market.price_limit must be greater than zero")
	}
	if c.Market.TimeLag < 0 {
		return fmt.Errorf("market.time_lag cannot be negative")
	}
	if c.Fetch.BacklogMax < 0 {
		return fmt.Errorf("fetch.backlog_max cannot be negative")
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be file or postgres, got %q", c.Storage.Driver)
	}
	if c.Retention.Main.Duration() < 0 || c.Retention.Stats.Duration() < 0 {
		return fmt.Errorf("retention windows cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.NodeTrigger < 0 || c.Alerting.IslandTrigger < 0 {
		return fmt.Errorf("alerting triggers cannot be negative")
	}
	switch c.Alerting.Source {
	case SourceInterval, SourceTradingPeriod:
	default:
		return fmt.Errorf("alerting.source must be %s or %s", SourceInterval, SourceTradingPeriod)
	}
	if c.Alerting.Enabled {
		for _, ch := range c.Alerting.Channels {
			switch ch {
			case "smtp":
				if c.Alerting.SMTP.Host == "" || c.Alerting.SMTP.Sender == "" {
					return fmt.Errorf("alerting.smtp.host and alerting.smtp.sender are required")
				}
				if c.Alerting.SMTP.Phonebook == "" {
					return fmt.Errorf("alerting.smtp.phonebook is required")
				}
			case "telegram":
				if c.Alerting.Telegram.BotToken == "" || c.Alerting.Telegram.ChatID == "" {
					return fmt.Errorf("alerting.telegram.bot_token and chat_id are required")
				}
			default:
				return fmt.Errorf("unknown alerting channel %q", ch)
			}
		}
	}
	return nil
}

// Location resolves the configured market time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
