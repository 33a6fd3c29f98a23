package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/querybridge/querybridge/internal/cli/querybridgectl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("QUERYBRIDGE_CLI_TIMEOUT")), 30*time.Second)
	options := querybridgectl.Options{
		BaseURL:   envOr("QUERYBRIDGE_API_URL", "http://localhost:8080"),
		APIKey:    strings.TrimSpace(os.Getenv("QUERYBRIDGE_API_KEY")),
		Directory: strings.TrimSpace(os.Getenv("QUERYBRIDGE_DIRECTORY")),
		Timeout:   timeout,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := querybridgectl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid QUERYBRIDGE_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
