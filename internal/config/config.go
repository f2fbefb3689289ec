package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port   int
	AppEnv string

	LogLevel    string
	LogEncoding string

	Store       string
	DatabaseURL string
	DBMaxConns  int32

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	Shortfall ledger.ShortfallPolicy
	Drain     ledger.DrainPolicy
	Operator  domain.Operator
}

func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// Load reads ./.env when present. Process environment wins over the file.
func Load() (Config, error) {
	envPath := filepath.Join(".", ".env")

	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileValues, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = fileValues
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}

	return parse(func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	})
}

func parse(get func(string) string) (Config, error) {
	cfg := Config{
		Port:        8080,
		AppEnv:      withDefault(get("APP_ENV"), "production"),
		LogLevel:    withDefault(get("LOG_LEVEL"), "info"),
		LogEncoding: withDefault(get("LOG_ENCODING"), "json"),
		Store:       withDefault(strings.ToLower(get("STORE")), StoreMemory),
		DatabaseURL: get("DATABASE_URL"),
		RedisAddr:   get("REDIS_ADDR"),
		KafkaTopic:  withDefault(get("KAFKA_TOPIC"), "inventory.ledger"),
		Operator: domain.Operator{
			ID:   withDefault(get("OPERATOR_ID"), "system"),
			Name: withDefault(get("OPERATOR_NAME"), "System"),
		},
	}
	cfg.RedisPassword = get("REDIS_PASSWORD")

	if portRaw := get("PORT"); portRaw != "" {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT: %q", portRaw)
		}
		cfg.Port = port
	}

	switch cfg.LogEncoding {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("invalid LOG_ENCODING: %q", cfg.LogEncoding)
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORE=postgres (environment variable or .env)")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE: %q", cfg.Store)
	}

	if raw := get("DB_MAX_CONNS"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNS: %q", raw)
		}
		cfg.DBMaxConns = int32(n)
	}

	if raw := get("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid REDIS_DB: %q", raw)
		}
		cfg.RedisDB = n
	}

	for _, broker := range strings.Split(get("KAFKA_BROKERS"), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
		}
	}

	var err error
	if cfg.Shortfall, err = ledger.ParseShortfallPolicy(get("SHORTFALL_POLICY")); err != nil {
		return Config{}, fmt.Errorf("SHORTFALL_POLICY: %w", err)
	}
	if cfg.Drain, err = ledger.ParseDrainPolicy(get("ADJUST_DRAIN_POLICY")); err != nil {
		return Config{}, fmt.Errorf("ADJUST_DRAIN_POLICY: %w", err)
	}

	return cfg, nil
}

func withDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}
