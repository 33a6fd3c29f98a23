package seeder

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Database != "school" || cfg.TableName != "STUDENT" {
		t.Fatalf("target = %s/%s", cfg.Database, cfg.TableName)
	}
	if cfg.Rows != 5 {
		t.Fatalf("Rows = %d", cfg.Rows)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"QUERYBRIDGE_DEMO_API_URL":      "http://demo.local:18080/",
		"QUERYBRIDGE_DEMO_API_KEY":      " k1 ",
		"QUERYBRIDGE_DEMO_DIRECTORY":    "/srv/data",
		"QUERYBRIDGE_DEMO_DATABASE":     "college",
		"QUERYBRIDGE_DEMO_TABLE":        "PUPIL",
		"QUERYBRIDGE_DEMO_ROWS":         "250",
		"QUERYBRIDGE_DEMO_BATCH_SIZE":   "40",
		"QUERYBRIDGE_DEMO_HTTP_TIMEOUT": "30s",
		"QUERYBRIDGE_DEMO_SEED":         "123",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://demo.local:18080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.APIKey != "k1" || cfg.Directory != "/srv/data" {
		t.Fatalf("APIKey = %q Directory = %q", cfg.APIKey, cfg.Directory)
	}
	if cfg.Database != "college" || cfg.TableName != "PUPIL" {
		t.Fatalf("target = %s/%s", cfg.Database, cfg.TableName)
	}
	if cfg.Rows != 250 || cfg.BatchSize != 40 {
		t.Fatalf("Rows = %d BatchSize = %d", cfg.Rows, cfg.BatchSize)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("HTTPTimeout = %s", cfg.HTTPTimeout)
	}
	if cfg.Seed != 123 {
		t.Fatalf("Seed = %d", cfg.Seed)
	}
}

func TestLoadConfigFromEnvRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"QUERYBRIDGE_DEMO_ROWS":         "0",
		"QUERYBRIDGE_DEMO_BATCH_SIZE":   "-1",
		"QUERYBRIDGE_DEMO_HTTP_TIMEOUT": "soon",
		"QUERYBRIDGE_DEMO_TABLE":        " ",
	}
	for key, value := range tests {
		_, err := LoadConfigFromEnv(mapLookup(map[string]string{key: value}))
		if err == nil {
			t.Fatalf("expected error for %s=%q", key, value)
		}
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
