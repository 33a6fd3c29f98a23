package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Storage       StorageConfig
	Query         QueryConfig
	Prompt        PromptConfig
	AI            AIConfig
	History       HistoryConfig
	Export        ExportConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StorageConfig struct {
	DataDir     string
	Engine      string
	RestrictDir bool
}

type QueryConfig struct {
	ReadOnly bool
	RowLimit int
	Timeout  time.Duration
}

type PromptConfig struct {
	SchemaContext bool
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type HistoryConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ExportConfig struct {
	Enabled bool
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	lookup := LookupFunc(os.LookupEnv)
	if path, ok := os.LookupEnv("QUERYBRIDGE_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		fileLookup, err := LoadFileLookup(strings.TrimSpace(path))
		if err != nil {
			return Config{}, err
		}
		lookup = Layered(os.LookupEnv, fileLookup)
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYBRIDGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYBRIDGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// The original deployment read the Gemini credential from GOOGLE_API_KEY.
	if err := applyString(lookup, "GOOGLE_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "QUERYBRIDGE_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "QUERYBRIDGE_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "QUERYBRIDGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "QUERYBRIDGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "QUERYBRIDGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "QUERYBRIDGE_STORAGE_DATA_DIR", &cfg.Storage.DataDir) },
		func() error { return applyString(lookup, "QUERYBRIDGE_STORAGE_ENGINE", &cfg.Storage.Engine) },
		func() error { return applyBool(lookup, "QUERYBRIDGE_STORAGE_RESTRICT_DIR", &cfg.Storage.RestrictDir) },
		func() error { return applyBool(lookup, "QUERYBRIDGE_QUERY_READ_ONLY", &cfg.Query.ReadOnly) },
		func() error { return applyInt(lookup, "QUERYBRIDGE_QUERY_ROW_LIMIT", &cfg.Query.RowLimit) },
		func() error { return applyDuration(lookup, "QUERYBRIDGE_QUERY_TIMEOUT", &cfg.Query.Timeout) },
		func() error { return applyBool(lookup, "QUERYBRIDGE_PROMPT_SCHEMA_CONTEXT", &cfg.Prompt.SchemaContext) },
		func() error { return applyString(lookup, "QUERYBRIDGE_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "QUERYBRIDGE_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "QUERYBRIDGE_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "QUERYBRIDGE_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "QUERYBRIDGE_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "QUERYBRIDGE_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyString(lookup, "QUERYBRIDGE_HISTORY_DSN", &cfg.History.DSN) },
		func() error { return applyInt(lookup, "QUERYBRIDGE_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns) },
		func() error { return applyInt(lookup, "QUERYBRIDGE_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "QUERYBRIDGE_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "QUERYBRIDGE_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime)
		},
		func() error { return applyBool(lookup, "QUERYBRIDGE_EXPORT_ENABLED", &cfg.Export.Enabled) },
		func() error { return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "QUERYBRIDGE_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "QUERYBRIDGE_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "QUERYBRIDGE_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "QUERYBRIDGE_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "QUERYBRIDGE_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "QUERYBRIDGE_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "QUERYBRIDGE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Storage.Engine = strings.ToLower(cfg.Storage.Engine)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Storage.DataDir == "" {
		return Config{}, fmt.Errorf("storage data dir is required")
	}
	switch cfg.Storage.Engine {
	case "sqlite", "duckdb":
	default:
		return Config{}, fmt.Errorf("invalid QUERYBRIDGE_STORAGE_ENGINE: %q", cfg.Storage.Engine)
	}
	switch cfg.AI.Provider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("invalid QUERYBRIDGE_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultBaseURL(cfg.AI.Provider)
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel(cfg.AI.Provider)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querybridge-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:     "data",
			Engine:      "sqlite",
			RestrictDir: false,
		},
		Query: QueryConfig{
			ReadOnly: true,
			RowLimit: 1000,
			Timeout:  30 * time.Second,
		},
		Prompt: PromptConfig{
			SchemaContext: false,
		},
		AI: AIConfig{
			Provider:    "gemini",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		History: HistoryConfig{
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Export: ExportConfig{
			Enabled: false,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querybridge",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Storage.RestrictDir = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func defaultBaseURL(provider string) string {
	if provider == "openai" {
		return "https://api.openai.com"
	}
	return "https://generativelanguage.googleapis.com"
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-5"
	}
	return "gemini-pro"
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
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
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
