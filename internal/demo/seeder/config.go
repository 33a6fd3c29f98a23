package seeder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	APIBaseURL  string
	APIKey      string
	Directory   string
	Database    string
	TableName   string
	Rows        int
	BatchSize   int
	HTTPTimeout time.Duration
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:  "http://localhost:8080",
		Database:    "school",
		TableName:   "STUDENT",
		Rows:        5,
		BatchSize:   100,
		HTTPTimeout: 10 * time.Second,
		Seed:        time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "QUERYBRIDGE_DEMO_API_URL", &cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYBRIDGE_DEMO_API_KEY", &cfg.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYBRIDGE_DEMO_DIRECTORY", &cfg.Directory); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYBRIDGE_DEMO_DATABASE", &cfg.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QUERYBRIDGE_DEMO_TABLE", &cfg.TableName); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYBRIDGE_DEMO_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QUERYBRIDGE_DEMO_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "QUERYBRIDGE_DEMO_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "QUERYBRIDGE_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_API_URL is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_DATABASE is required")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_TABLE is required")
	}
	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_ROWS must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_BATCH_SIZE must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("QUERYBRIDGE_DEMO_HTTP_TIMEOUT must be > 0")
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Directory = strings.TrimSpace(cfg.Directory)
	cfg.Database = strings.TrimSpace(cfg.Database)
	cfg.TableName = strings.TrimSpace(cfg.TableName)
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
