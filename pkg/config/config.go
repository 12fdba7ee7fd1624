// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App          AppConfig
	MySQL        MySQLConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Jaeger       JaegerConfig
	Metrics      MetricsConfig
	Payment      PaymentConfig
	Notification NotificationConfig
	AbandonedCart AbandonedCartConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"orderfulfillment"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:3000"`
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"orderfulfillment"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis. Redis хранит
// idempotency-ключи и admin-сессии — оба набора ключей TTL-purged.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka, используемой только
// для доставки уведомлений через outbox (нет саговых command/reply топиков:
// сага не пересекает границы сервисов в этой системе).
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup     string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"orderfulfillment-notifications"`
	NotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"notifications"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"false"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PaymentConfig содержит настройки платёжного адаптера: адрес провайдера и
// ссылку на секрет для верификации подписи webhook (сам секрет читается из
// защищённого хранилища процессом, см. internal/payment).
type PaymentConfig struct {
	BaseURL             string        `env:"PAYMENT_PROVIDER_BASE_URL" envDefault:"https://api.payments.example.com"`
	WebhookSecretRef    string        `env:"PAYMENT_WEBHOOK_SECRET_REF" envDefault:"payment/webhook-signing-secret"`
	RequestTimeout      time.Duration `env:"PAYMENT_REQUEST_TIMEOUT" envDefault:"10s"`
	// AllowUnverifiedWebhooks разрешает необработанный парсинг webhook без
	// проверки подписи — только для явно помеченного dev-режима.
	AllowUnverifiedWebhooks bool `env:"PAYMENT_ALLOW_UNVERIFIED_WEBHOOKS" envDefault:"false"`
}

// NotificationConfig содержит настройки отправителя уведомлений.
type NotificationConfig struct {
	SenderAddress string `env:"NOTIFICATION_SENDER_ADDRESS" envDefault:"orders@example.com"`
	Enabled       bool   `env:"NOTIFICATION_ENABLED" envDefault:"true"`
}

// AbandonedCartConfig содержит настройки ревизора брошенных корзин.
type AbandonedCartConfig struct {
	TimeoutMinutes  int  `env:"ABANDONED_CART_TIMEOUT_MINUTES" envDefault:"30"`
	ReminderEnabled bool `env:"ABANDONED_CART_REMINDER_ENABLED" envDefault:"true"`
	PollInterval    time.Duration `env:"REAPER_POLL_INTERVAL" envDefault:"5m"`
	BatchSize       int  `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Timeout возвращает таймаут брошенной корзины как time.Duration.
func (c AbandonedCartConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// ReminderThreshold возвращает возраст заказа, после которого отправляется
// напоминание (TIMEOUT - 5 минут).
func (c AbandonedCartConfig) ReminderThreshold() time.Duration {
	threshold := c.Timeout() - 5*time.Minute
	if threshold < 0 {
		return 0
	}
	return threshold
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
