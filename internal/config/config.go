package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	BotToken string
	BotDebug bool

	// REST API платформы
	APIBaseURL string
	APITimeout time.Duration
	PageSize   int

	AppEnv   string
	LogLevel string

	// Локализация
	DefaultLocale string
	LocalesDir    string // каталог с переопределениями en.json/ru.json, пусто - только встроенные

	// Webhook режим, пустой WebhookURL - long polling
	WebhookURL    string
	WebhookSecret string
	ListenAddr    string

	// Ограничение исходящих сообщений Telegram
	SendRate  float64
	SendBurst int

	// Сессии
	SessionTTL    time.Duration
	SweepSchedule string

	// OpenTelemetry
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load загружает конфигурацию из переменных окружения или .env файла
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	cfg := &Config{
		BotToken: getEnv("BOT_TOKEN", ""),
		BotDebug: getEnvBool("BOT_DEBUG", false),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),
		PageSize:   getEnvInt("PAGE_SIZE", 15),

		AppEnv:   normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DefaultLocale: strings.ToLower(getEnv("DEFAULT_LOCALE", "ru")),
		LocalesDir:    getEnv("LOCALES_DIR", ""),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),

		SendRate:  getEnvFloat("SEND_RATE", 25),
		SendBurst: getEnvInt("SEND_BURST", 5),

		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 30m"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN не задан")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL не задан")
	}
	if c.DefaultLocale != "ru" && c.DefaultLocale != "en" {
		return fmt.Errorf("DEFAULT_LOCALE: неподдерживаемый язык %q", c.DefaultLocale)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE должен быть больше нуля")
	}
	if c.SendRate <= 0 || c.SendBurst < 1 {
		return fmt.Errorf("SEND_RATE и SEND_BURST должны быть положительными")
	}
	return nil
}

// IsProduction - боевое окружение
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UseWebhook - режим приёма обновлений через webhook
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(getEnv(key, "")), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(getEnv(key, "")))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
