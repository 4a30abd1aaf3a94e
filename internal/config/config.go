package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // hours
	} `yaml:"jwt"`

	Chat struct {
		MaxMessageLength int `yaml:"max_message_length"`
		DefaultPageSize  int `yaml:"default_page_size"`
		MaxPageSize      int `yaml:"max_page_size"`
	} `yaml:"chat"`

	Notifications struct {
		OutboxBuffer  int `yaml:"outbox_buffer"`
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"notifications"`
}

// AppConfig is the process-wide configuration, populated by LoadConfig.
var AppConfig *Config

// LoadConfig reads config.yaml (path overridable via CONFIG_PATH), then applies
// environment overrides. A .env file is honored when present.
func LoadConfig() {
	_ = godotenv.Load()

	cfg := defaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("failed to parse config file %s: %v", path, err)
		}
	}

	applyEnvOverrides(cfg)
	AppConfig = cfg
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 4000
	cfg.Server.Env = "development"
	cfg.JWT.TTL = 24
	cfg.Chat.MaxMessageLength = 2000
	cfg.Chat.DefaultPageSize = 50
	cfg.Chat.MaxPageSize = 100
	cfg.Notifications.OutboxBuffer = 256
	cfg.Notifications.RetentionDays = 90
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
}
