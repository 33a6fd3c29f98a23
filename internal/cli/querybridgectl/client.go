package querybridgectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// apiError carries the error envelope returned by the service.
type apiError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
	TraceID   string
	Context   map[string]any
	raw       string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.raw)
	}
	msg := fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
	if details, ok := e.Context["details"]; ok {
		msg += fmt.Sprintf(" (%v)", details)
	}
	return msg
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode, raw: strings.TrimSpace(string(raw))}
		var envelope struct {
			Code      string         `json:"error_code"`
			Message   string         `json:"message"`
			Retryable bool           `json:"retryable"`
			Context   map[string]any `json:"context"`
			TraceID   string         `json:"trace_id"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
			apiErr.Retryable = envelope.Retryable
			apiErr.Context = envelope.Context
			apiErr.TraceID = envelope.TraceID
		}
		return nil, apiErr
	}
	return raw, nil
}

func (c *client) decode(ctx context.Context, method, path string, query url.Values, payload, target any) ([]byte, error) {
	raw, err := c.do(ctx, method, path, query, payload)
	if err != nil {
		return nil, err
	}
	if target != nil {
		if err := unmarshal(raw, target); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func unmarshal(raw []byte, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
