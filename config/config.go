package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Reachvip123/telegram-store-bot/internal/database"

	"go.uber.org/zap"
)

type Config struct {
	Port    string
	APIKey  string
	DB      DB
	Bakong  Bakong
	Kafka   Kafka
	Polling Polling
}

type DB struct {
	database.Config
}

// Bakong selects the payment transport: ProxyURL wins over Token, and
// with both empty the store starts without payments.
type Bakong struct {
	Token        string
	BankAccount  string
	MerchantName string
	ProxyURL     string
}

type Kafka struct {
	Brokers       []string
	MessagesTopic string
	AlertsTopic   string
}

type Polling struct {
	Interval time.Duration
	Attempts int
}

func Load(log *zap.Logger) *Config {
	return &Config{
		Port:   getEnv("APP_PORT", log),
		APIKey: optionalEnv("API_KEY", ""),
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
			},
		},
		Bakong: Bakong{
			Token:        optionalEnv("BAKONG_TOKEN", ""),
			BankAccount:  optionalEnv("BAKONG_ACCOUNT", ""),
			MerchantName: optionalEnv("MERCHANT_NAME", "Telegram Store"),
			ProxyURL:     optionalEnv("BAKONG_PROXY_URL", ""),
		},
		Kafka: Kafka{
			Brokers:       splitAndTrim(optionalEnv("KAFKA_BROKERS", "")),
			MessagesTopic: optionalEnv("KAFKA_MESSAGES_TOPIC", "store.messages"),
			AlertsTopic:   optionalEnv("KAFKA_ALERTS_TOPIC", "store.alerts"),
		},
		Polling: Polling{
			Interval: durationDefault(optionalEnv("POLL_INTERVAL", ""), 5*time.Second),
			Attempts: atoiDefault(optionalEnv("POLL_ATTEMPTS", ""), 120),
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("required environment variable is not set", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func optionalEnv(key, def string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func durationDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
