package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath     = "./dev.db"
	defaultPort       = "8080"
	defaultAppEnv     = "development"
	defaultLogLevel   = "info"
	defaultKafkaTopic = "shipment-events"
)

// Config holds application configuration. Environment variables win over
// the optional YAML file named by CONFIG_FILE.
type Config struct {
	AppEnv            string
	LogLevel          string
	AdminEmail        string
	AdminPassword     string
	SessionSecret     string
	DBPath            string
	Port              string
	KafkaBrokers      []string
	KafkaTopic        string
	SeedReferenceData bool
}

// fileConfig mirrors the YAML layout of CONFIG_FILE.
type fileConfig struct {
	AppEnv        string `yaml:"app_env"`
	LogLevel      string `yaml:"log_level"`
	DBPath        string `yaml:"db_path"`
	Port          string `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
	Admin         struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	SeedReferenceData *bool `yaml:"seed_reference_data"`
}

// Load reads .env, the optional CONFIG_FILE and the environment.
func Load() (Config, error) {
	// Missing .env is fine; production injects real env.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if file, err = readFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		AppEnv:        pick("APP_ENV", file.AppEnv, defaultAppEnv),
		LogLevel:      pick("LOG_LEVEL", file.LogLevel, defaultLogLevel),
		AdminEmail:    pick("ADMIN_EMAIL", file.Admin.Email, ""),
		AdminPassword: pick("ADMIN_PASSWORD", file.Admin.Password, ""),
		SessionSecret: pick("SESSION_SECRET", file.SessionSecret, ""),
		DBPath:        pick("DB_PATH", file.DBPath, defaultDBPath),
		Port:          pick("PORT", file.Port, defaultPort),
		KafkaTopic:    pick("KAFKA_TOPIC", file.Kafka.Topic, defaultKafkaTopic),
		KafkaBrokers:  file.Kafka.Brokers,
	}

	if raw := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(raw) != "" {
		cfg.KafkaBrokers = splitList(raw)
	}

	cfg.SeedReferenceData = cfg.IsDev()
	if file.SeedReferenceData != nil {
		cfg.SeedReferenceData = *file.SeedReferenceData
	}
	if raw := os.Getenv("SEED_REFERENCE_DATA"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse SEED_REFERENCE_DATA: %w", err)
		}
		cfg.SeedReferenceData = v
	}

	for key, val := range map[string]string{
		"ADMIN_EMAIL":    cfg.AdminEmail,
		"ADMIN_PASSWORD": cfg.AdminPassword,
		"SESSION_SECRET": cfg.SessionSecret,
	} {
		if val == "" {
			slog.Warn("configuration value is not set", "key", key)
		}
	}

	return cfg, nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local":
		return true
	default:
		return false
	}
}

// KafkaEnabled reports whether at least one broker is configured.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, fmt.Errorf("config file %s does not exist", path)
		}
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fc, nil
}

func pick(envKey, fromFile, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
