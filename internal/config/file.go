package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrFileNotFound = errors.New("config file not found")

// LoadFileLookup reads a YAML file and exposes it as a LookupFunc. Nested keys
// are flattened into QUERYBRIDGE_ variable names, so
//
//	storage:
//	  data_dir: /srv/querybridge
//
// answers lookups for QUERYBRIDGE_STORAGE_DATA_DIR.
func LoadFileLookup(path string) (LookupFunc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFileLookup(raw)
}

func ParseFileLookup(raw []byte) (LookupFunc, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	values := map[string]string{}
	flatten("QUERYBRIDGE", doc, values)
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}, nil
}

// Layered returns a lookup that asks each source in order and stops at the
// first hit.
func Layered(sources ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, source := range sources {
			if source == nil {
				continue
			}
			if value, ok := source(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	keys := make([]string, 0, len(node))
	for key := range node {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := prefix + "_" + strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
		switch typed := node[key].(type) {
		case map[string]any:
			flatten(name, typed, out)
		case nil:
			out[name] = ""
		default:
			out[name] = fmt.Sprint(typed)
		}
	}
}
