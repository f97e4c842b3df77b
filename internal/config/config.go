package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Admins     []int64          `yaml:"admins"`
	Blocked    []int64          `yaml:"blocked"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	I18n       I18nConfig       `yaml:"i18n"`
	Exports    ExportConfig     `yaml:"exports"`
	Customer   CustomerConfig   `yaml:"customer"`
	Bot        BotConfig        `yaml:"bot"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BroadcastConfig paces announcement delivery towards the Telegram API.
type BroadcastConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

type I18nConfig struct {
	Dir             string   `yaml:"dir"`
	DefaultLanguage string   `yaml:"default_language"`
	Languages       []string `yaml:"languages"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type CustomerConfig struct {
	CodePrefix string `yaml:"code_prefix"`
}

type BotConfig struct {
	RateLimitMessages int     `yaml:"rate_limit_messages"`
	RateLimitWindow   int     `yaml:"rate_limit_window"`
	MaxAmount         float64 `yaml:"max_amount"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

func Load(configPath string) (*Config, error) {
	// .env values are substituted into the YAML via os.ExpandEnv
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if len(c.Admins) == 0 {
		return errors.New("at least one admin id is required")
	}

	seen := make(map[int64]bool, len(c.Admins))
	for _, id := range c.Admins {
		if id == 0 {
			return errors.New("admin id 0 is invalid")
		}
		if seen[id] {
			return fmt.Errorf("duplicate admin id: %d", id)
		}
		seen[id] = true
	}

	if c.Broadcast.MessagesPerSecond < 0 {
		return errors.New("broadcast.messages_per_second must not be negative")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}

	if c.Broadcast.MessagesPerSecond == 0 {
		c.Broadcast.MessagesPerSecond = 25
	}
	if c.Broadcast.Burst == 0 {
		c.Broadcast.Burst = 5
	}

	if c.I18n.Dir == "" {
		c.I18n.Dir = "translations"
	}
	if c.I18n.DefaultLanguage == "" {
		c.I18n.DefaultLanguage = "en"
	}
	if len(c.I18n.Languages) == 0 {
		c.I18n.Languages = []string{"en", "ar"}
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "data/exports"
	}

	if c.Customer.CodePrefix == "" {
		c.Customer.CodePrefix = "C"
	}

	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = 20
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = 60
	}
}
