package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	TelegramToken         string        `mapstructure:"TELEGRAM_TOKEN"`
	DBDSN                 string        `mapstructure:"DB_DSN"`
	Environment           string        `mapstructure:"ENV"`
	HTTPAddr              string        `mapstructure:"HTTP_ADDR"`
	Storage               string        `mapstructure:"STORAGE"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	AMQPURL               string        `mapstructure:"AMQP_URL"`
	RequestExpiryInterval time.Duration `mapstructure:"REQUEST_EXPIRY_INTERVAL"`
	AllowedOrigins        []string      `mapstructure:"ALLOWED_ORIGINS"`
	Timezone              string        `mapstructure:"TIMEZONE"`
	WeekFontPath          string        `mapstructure:"WEEK_FONT_PATH"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	// Читаем напрямую из переменных окружения (после godotenv.Load они там)
	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		Environment:    os.Getenv("ENV"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		Storage:        strings.ToLower(os.Getenv("STORAGE")),
		RedisURL:       os.Getenv("REDIS_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		Timezone:       os.Getenv("TIMEZONE"),
		WeekFontPath:   os.Getenv("WEEK_FONT_PATH"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3000"
	}
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	cfg.RequestExpiryInterval = 5 * time.Minute
	if raw := os.Getenv("REQUEST_EXPIRY_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("REQUEST_EXPIRY_INTERVAL must be a positive duration, got %q", raw)
		}
		cfg.RequestExpiryInterval = interval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (storage=%s, addr=%s)\n", cfg.Storage, cfg.HTTPAddr)

	return cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Location часовой пояс для уведомлений и картинки недели
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
