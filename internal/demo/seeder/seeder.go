// Package seeder fills a database with a demo STUDENT table through the API.
package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type Service struct {
	cfg       Config
	log       *slog.Logger
	http      *http.Client
	generator *Generator
}

type createTableRequest struct {
	Directory string   `json:"directory,omitempty"`
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
}

type insertRowsRequest struct {
	Directory string     `json:"directory,omitempty"`
	Rows      [][]string `json:"rows"`
}

type insertRowsResponse struct {
	Inserted int `json:"inserted"`
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("database is required")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Service{
		cfg:       cfg,
		log:       logger,
		http:      client,
		generator: NewGenerator(cfg.Seed),
	}, nil
}

// Run creates the table when missing and inserts cfg.Rows generated rows in
// batches. It returns the number of rows inserted.
func (s *Service) Run(ctx context.Context) (int, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	inserted := 0
	for inserted < s.cfg.Rows {
		size := min(s.cfg.BatchSize, s.cfg.Rows-inserted)
		n, err := s.insertBatch(ctx, size)
		if err != nil {
			return inserted, err
		}
		if n == 0 {
			return inserted, fmt.Errorf("insert request accepted no rows")
		}
		inserted += n
	}
	return inserted, nil
}

func (s *Service) tablesPath() string {
	return "/v1/databases/" + url.PathEscape(s.cfg.Database) + "/tables"
}

func (s *Service) ensureTable(ctx context.Context) error {
	req := createTableRequest{
		Directory: s.cfg.Directory,
		TableName: s.cfg.TableName,
		Columns:   Columns,
	}
	status, body, err := s.doJSON(ctx, http.MethodPost, s.tablesPath(), req, nil)
	if err != nil {
		return fmt.Errorf("create demo table: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create demo table failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}
	s.log.Info("demo table ready", slog.String("database", s.cfg.Database), slog.String("table", s.cfg.TableName))
	return nil
}

func (s *Service) insertBatch(ctx context.Context, size int) (int, error) {
	request := insertRowsRequest{
		Directory: s.cfg.Directory,
		Rows:      make([][]string, 0, size),
	}
	for i := 0; i < size; i++ {
		request.Rows = append(request.Rows, s.generator.NextStudent())
	}

	var response insertRowsResponse
	path := s.tablesPath() + "/" + url.PathEscape(s.cfg.TableName) + "/rows"
	status, body, err := s.doJSON(ctx, http.MethodPost, path, request, &response)
	if err != nil {
		return 0, fmt.Errorf("insert request failed: %w", err)
	}
	if status != http.StatusCreated {
		return 0, fmt.Errorf("insert request status %d: %s", status, strings.TrimSpace(string(body)))
	}

	s.log.Info(
		"inserted demo batch",
		slog.String("database", s.cfg.Database),
		slog.String("table", s.cfg.TableName),
		slog.Int("batch_size", len(request.Rows)),
		slog.Int("inserted", response.Inserted),
	)
	return response.Inserted, nil
}

func (s *Service) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) (int, []byte, error) {
	var payload io.Reader
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if responseBody != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, responseBody); err != nil {
			return resp.StatusCode, body, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}
