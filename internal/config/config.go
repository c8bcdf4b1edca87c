package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Market         MarketConfig         `yaml:"market"`
	Economy        EconomyConfig        `yaml:"economy"`
	Claims         ClaimsConfig         `yaml:"claims"`
	Naming         NamingConfig         `yaml:"naming"`
}

// DiscordConfig holds Discord bot settings. The bot is disabled when Token is empty.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	GuildID   string `yaml:"guild_id"`
	ChannelID string `yaml:"channel_id"` // trade announcements; optional
}

// Enabled reports whether a bot token is configured.
func (d DiscordConfig) Enabled() bool { return d.Token != "" }

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "file", "sqlx" or "sqlite"

	// file driver
	DataDir string `yaml:"data_dir"`

	// sqlite driver
	Path string `yaml:"path"`

	// sqlx (Postgres) driver
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	// InstanceID names this replica in exported telemetry. It defaults to
	// the leader election identity.
	InstanceID string `yaml:"instance_id"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// MarketConfig holds listing limits and the sweep cadence.
type MarketConfig struct {
	SaleMinPrice int64 `yaml:"sale_min_price"`
	SaleMaxPrice int64 `yaml:"sale_max_price"` // 0 means unlimited

	AuctionMinDuration     time.Duration `yaml:"auction_min_duration"`
	AuctionMaxDuration     time.Duration `yaml:"auction_max_duration"`
	AuctionDefaultDuration time.Duration `yaml:"auction_default_duration"`

	SweepInterval       time.Duration `yaml:"sweep_interval"`
	DisplayRefreshEvery int           `yaml:"display_refresh_every"`

	SaleHeaders    []string `yaml:"sale_headers"`
	AuctionHeaders []string `yaml:"auction_headers"`

	// SettleOnLatestBids prices auctions over each bidder's latest bid only.
	// When false every recorded bid takes part, duplicates included.
	SettleOnLatestBids bool `yaml:"settle_on_latest_bids"`

	InboxSize int `yaml:"inbox_size"`
}

// EconomyConfig selects the currency service.
type EconomyConfig struct {
	Driver          string `yaml:"driver"` // "memory" or "redis"
	RedisURL        string `yaml:"redis_url"`
	Retries         int    `yaml:"retries"`
	CurrencySymbol  string `yaml:"currency_symbol"`
	StartingBalance int64  `yaml:"starting_balance"`
}

// ClaimsConfig selects the claim registry.
type ClaimsConfig struct {
	Driver  string        `yaml:"driver"` // "memory" or "http"
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NamingConfig holds claim naming limits.
type NamingConfig struct {
	MaxNameLength int `yaml:"max_name_length"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "file",
			DataDir: "data",
			Path:    "data/market.db",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "claimmarket",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "claimmarket-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Market: MarketConfig{
			SaleMinPrice:           100,
			SaleMaxPrice:           0,
			AuctionMinDuration:     time.Hour,
			AuctionMaxDuration:     14 * 24 * time.Hour,
			AuctionDefaultDuration: 72 * time.Hour,
			SweepInterval:          30 * time.Second,
			DisplayRefreshEvery:    2,
			SaleHeaders:            []string{"[for sale]", "[forsale]"},
			AuctionHeaders:         []string{"[auction]"},
			SettleOnLatestBids:     false,
			InboxSize:              50,
		},
		Economy: EconomyConfig{
			Driver:         "memory",
			Retries:        5,
			CurrencySymbol: "$",
		},
		Claims: ClaimsConfig{
			Driver:  "memory",
			Timeout: 5 * time.Second,
		},
		Naming: NamingConfig{
			MaxNameLength: 32,
		},
	}
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error

	switch c.Database.Driver {
	case "file", "sqlx", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q: must be \"file\", \"sqlx\" or \"sqlite\"", c.Database.Driver))
	}

	switch c.Economy.Driver {
	case "memory":
	case "redis":
		if c.Economy.RedisURL == "" {
			errs = append(errs, errors.New("economy driver \"redis\" requires redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported economy driver %q: must be \"memory\" or \"redis\"", c.Economy.Driver))
	}

	switch c.Claims.Driver {
	case "memory":
	case "http":
		if c.Claims.BaseURL == "" {
			errs = append(errs, errors.New("claims driver \"http\" requires base_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported claims driver %q: must be \"memory\" or \"http\"", c.Claims.Driver))
	}

	m := c.Market
	if m.SweepInterval <= 0 {
		errs = append(errs, errors.New("market.sweep_interval must be positive"))
	}
	if m.DisplayRefreshEvery <= 0 {
		errs = append(errs, errors.New("market.display_refresh_every must be positive"))
	}
	if m.AuctionMinDuration > m.AuctionMaxDuration {
		errs = append(errs, errors.New("market.auction_min_duration exceeds auction_max_duration"))
	}
	if m.AuctionDefaultDuration < m.AuctionMinDuration || m.AuctionDefaultDuration > m.AuctionMaxDuration {
		errs = append(errs, errors.New("market.auction_default_duration is outside the duration bounds"))
	}
	if m.SaleMaxPrice > 0 && m.SaleMaxPrice < m.SaleMinPrice {
		errs = append(errs, errors.New("market.sale_max_price is below sale_min_price"))
	}
	if len(m.SaleHeaders) == 0 || len(m.AuctionHeaders) == 0 {
		errs = append(errs, errors.New("market sign headers must not be empty"))
	}

	return errors.Join(errs...)
}
