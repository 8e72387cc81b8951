// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
// Paystack, Redis и Kafka опциональны: пустое значение выключает компонент.
type Config struct {
	RunAddress          string `env:"RUN_ADDRESS"`
	DatabaseURI         string `env:"DATABASE_URI"`
	PaystackSecretKey   string `env:"PAYSTACK_SECRET_KEY"`
	PaystackAPIAddress  string `env:"PAYSTACK_API_ADDRESS"`
	PaystackCallbackURL string `env:"PAYSTACK_CALLBACK_URL"`
	RedisAddr           string `env:"REDIS_ADDR"`
	KafkaBrokers        string `env:"KAFKA_BROKERS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envValues := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaystackSecretKey, "k", "", "paystack secret key")
	flag.StringVar(&cfg.PaystackAPIAddress, "p", "https://api.paystack.co", "paystack API address")
	flag.StringVar(&cfg.PaystackCallbackURL, "c", "", "paystack callback URL")
	flag.StringVar(&cfg.RedisAddr, "e", "", "redis address for webhook dedup cache")
	flag.StringVar(&cfg.KafkaBrokers, "b", "", "kafka brokers for operator alerts, comma-separated")

	flag.Parse()

	if envValues.RunAddress != "" {
		cfg.RunAddress = envValues.RunAddress
	}
	if envValues.DatabaseURI != "" {
		cfg.DatabaseURI = envValues.DatabaseURI
	}
	if envValues.PaystackSecretKey != "" {
		cfg.PaystackSecretKey = envValues.PaystackSecretKey
	}
	if envValues.PaystackAPIAddress != "" {
		cfg.PaystackAPIAddress = envValues.PaystackAPIAddress
	}
	if envValues.PaystackCallbackURL != "" {
		cfg.PaystackCallbackURL = envValues.PaystackCallbackURL
	}
	if envValues.RedisAddr != "" {
		cfg.RedisAddr = envValues.RedisAddr
	}
	if envValues.KafkaBrokers != "" {
		cfg.KafkaBrokers = envValues.KafkaBrokers
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// Brokers возвращает список адресов брокеров Kafka.
func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}

	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
