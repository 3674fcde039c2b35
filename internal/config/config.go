// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Chat        ChatConfig        `mapstructure:"chat"`
	Announce    AnnounceConfig    `mapstructure:"announce"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Lock        LockConfig        `mapstructure:"lock"`
	Sweep       SweepConfig       `mapstructure:"sweep"`
}

// ChatConfig holds the Twitch connection parameters.
type ChatConfig struct {
	Server  string `mapstructure:"server"`
	Nick    string `mapstructure:"nick"`
	Token   string `mapstructure:"token"`
	Channel string `mapstructure:"channel"`
	// Owner is the broadcaster identity; always privileged for admin
	// commands.
	Owner string `mapstructure:"owner"`
	// BonusBadges limits the first-message and daily bonuses to senders
	// carrying one of these chat badges. Empty means everyone qualifies.
	BonusBadges []string `mapstructure:"bonus_badges"`
}

// AnnounceConfig holds the external announcement channel parameters.
type AnnounceConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	// Interval is how often changed views are checked and published.
	Interval time.Duration `mapstructure:"interval"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver   string         `mapstructure:"driver"`
	Path     string         `mapstructure:"path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	PoolSize       int           `mapstructure:"pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// BackupConfig holds snapshot parameters for the sqlite backend.
type BackupConfig struct {
	Dir      string        `mapstructure:"dir"`
	Keep     int           `mapstructure:"keep"`
	Interval time.Duration `mapstructure:"interval"`
}

// LeaderboardConfig holds leaderboard presentation parameters.
type LeaderboardConfig struct {
	Size int `mapstructure:"size"`
	// Excluded identities accrue nothing and never appear in rankings.
	Excluded []string `mapstructure:"excluded"`
}

// LockConfig holds the store lock parameters.
type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SweepConfig holds the expired reward sweep parameters.
type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., CHAT_TOKEN, DATABASE_DRIVER, ANNOUNCE_WEBHOOK_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file not found is OK, env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.server", "wss://irc-ws.chat.twitch.tv:443")
	v.SetDefault("chat.bonus_badges", []string{})

	v.SetDefault("announce.interval", "30m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "users.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "kranikbot")
	v.SetDefault("database.postgres.name", "kranikbot")
	v.SetDefault("database.postgres.pool_size", 10)
	v.SetDefault("database.postgres.connect_timeout", "10s")

	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 5)
	v.SetDefault("backup.interval", "6h")

	v.SetDefault("leaderboard.size", 5)
	v.SetDefault("leaderboard.excluded", []string{
		"streamelements", "moobot", "nightbot", "fossabot",
		"wizebot", "wuhdo", "kranik1606", "kranikbot",
	})

	v.SetDefault("lock.timeout", "5s")

	v.SetDefault("sweep.interval", "5m")
}
