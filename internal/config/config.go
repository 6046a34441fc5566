package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	Postgres DBConfig

	// Alerting
	AlertCooldown   time.Duration
	AlertRecipients []string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	FromEmail       string
	FromName        string

	// Optional redis-backed throttle store; empty address keeps the
	// in-memory store.
	RedisAddr     string
	RedisPassword string

	// Weather + irrigation collaborators
	OpenWeatherAPIKey string
	WeatherCacheTTL   time.Duration
	DefaultCity       string
	PredictorURL      string

	// Optional MQTT ingestion path; empty broker URL disables it.
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Serial to provision a full five-kind probe for on startup; empty
	// disables seeding.
	SeedSerial string
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("AGROSENSE_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Postgres: DBConfig{
			User:     strings.TrimSpace(os.Getenv("POSTGRES_USER")),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   strings.TrimSpace(os.Getenv("POSTGRES_DB")),
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		AlertCooldown:     minutes("ALERT_COOLDOWN_MINUTES", 15),
		AlertRecipients:   splitList(os.Getenv("ALERT_RECIPIENTS")),
		SMTPHost:          getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		FromEmail:         getEnv("FROM_EMAIL", "alerts@agrosense.local"),
		FromName:          getEnv("FROM_NAME", "Agrosense"),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherCacheTTL:   hours("WEATHER_CACHE_TTL_HOURS", 24),
		DefaultCity:       getEnv("DEFAULT_CITY", "Sao Paulo"),
		PredictorURL:      strings.TrimSpace(os.Getenv("PREDICTOR_URL")),
		MQTTBrokerURL:     strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "agrosense"),
		MQTTTopicPrefix:   getEnv("MQTT_TOPIC_PREFIX", "agrosense/telemetry/"),
		SeedSerial:        strings.TrimSpace(os.Getenv("SEED_SERIAL")),
	}

	slog.Info("config loaded", "port", cfg.Port, "cooldown", cfg.AlertCooldown, "mqtt", cfg.MQTTBrokerURL != "", "redis_throttle", cfg.RedisAddr != "")
	return cfg
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func minutes(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			return time.Duration(m) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}

func hours(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			return time.Duration(h) * time.Hour
		}
	}
	return time.Duration(def) * time.Hour
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
