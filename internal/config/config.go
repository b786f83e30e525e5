package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration.
type Config struct {
	DatabaseURL    string `yaml:"database_url"`
	HTTPAddr       string `yaml:"http_addr"`
	JWTSecret      string `yaml:"jwt_secret"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`

	Ingest  IngestConfig  `yaml:"ingest"`
	Safety  SafetyConfig  `yaml:"safety"`
	Notify  NotifyConfig  `yaml:"notify"`
	Redis   RedisConfig   `yaml:"redis"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// IngestConfig controls signed telemetry submissions.
type IngestConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	MaxSkew    time.Duration `yaml:"max_skew"`
}

// SafetyConfig controls the room state machine.
type SafetyConfig struct {
	GasThresholdPPM       float64 `yaml:"gas_threshold_ppm"`
	ValveToggleAutoCreate bool    `yaml:"valve_toggle_autocreate"`
}

// NotifyConfig controls alert delivery.
type NotifyConfig struct {
	PushGatewayURL string        `yaml:"push_gateway_url"`
	PushServerKey  string        `yaml:"push_server_key"`
	WebhookURL     string        `yaml:"webhook_url"`
	Template       string        `yaml:"template"`
	Timeout        time.Duration `yaml:"timeout"`
	Cooldown       time.Duration `yaml:"cooldown"`
	DedupeWindow   time.Duration `yaml:"dedupe_window"`
}

// RedisConfig configures the notification send log.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TelemetryTopic string `yaml:"telemetry_topic"`
	AlertTopic     string `yaml:"alert_topic"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from env, then overlays ROOMGUARD_CONFIG when set.
func Load() (Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("PG_DSN")
	}
	cfg := Config{
		DatabaseURL:    dbURL,
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
		MigrateOnStart: getenvBool("MIGRATE_ON_START", false),
		Ingest: IngestConfig{
			HMACSecret: os.Getenv("INGEST_HMAC_SECRET"),
			MaxSkew:    time.Duration(getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300)) * time.Second,
		},
		Safety: SafetyConfig{
			GasThresholdPPM:       getenvFloatDefault("GAS_THRESHOLD_PPM", 300),
			ValveToggleAutoCreate: getenvBool("VALVE_TOGGLE_AUTOCREATE", false),
		},
		Notify: NotifyConfig{
			PushGatewayURL: os.Getenv("PUSH_GATEWAY_URL"),
			PushServerKey:  os.Getenv("PUSH_SERVER_KEY"),
			WebhookURL:     os.Getenv("ALERT_WEBHOOK_URL"),
			Template:       os.Getenv("ALERT_NOTIFY_TEMPLATE"),
			Timeout:        getenvDuration("NOTIFY_TIMEOUT", 5*time.Second),
			Cooldown:       getenvDuration("NOTIFY_COOLDOWN", 0),
			DedupeWindow:   getenvDuration("NOTIFY_DEDUP_WINDOW", 0),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvIntDefault("REDIS_DB", 0),
		},
		MQTT: MQTTConfig{
			Broker:         os.Getenv("MQTT_BROKER"),
			ClientID:       getenvDefault("MQTT_CLIENT_ID", "roomguard"),
			Username:       os.Getenv("MQTT_USERNAME"),
			Password:       os.Getenv("MQTT_PASSWORD"),
			TelemetryTopic: getenvDefault("MQTT_TELEMETRY_TOPIC", "roomguard/rooms/+/gas"),
			AlertTopic:     getenvDefault("MQTT_ALERT_TOPIC", "roomguard/alerts"),
		},
		Logging: LoggingConfig{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "json"),
		},
	}

	if path := os.Getenv("ROOMGUARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Validate checks settings every command needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.Safety.GasThresholdPPM <= 0 {
		return errors.New("config: gas threshold must be positive")
	}
	if c.Notify.Timeout <= 0 {
		return errors.New("config: notify timeout must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
