package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/dbfile"
)

var errDirectoryOutsideDataDir = errors.New("directory is outside the data directory")

type createDirectoryRequest struct {
	Path string `json:"path"`
}

// resolveDirectory maps a request directory to a filesystem path. An empty
// value selects the data directory. With RestrictDir set, relative values are
// taken relative to the data directory and the result must stay inside it.
func (s *server) resolveDirectory(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.cfg.Storage.DataDir, nil
	}
	if !s.cfg.Storage.RestrictDir {
		return filepath.Clean(raw), nil
	}

	root, err := filepath.Abs(s.cfg.Storage.DataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errDirectoryOutsideDataDir, raw)
	}
	return candidate, nil
}

func (s *server) databasePath(directory, database string) (string, error) {
	return dbfile.Path(directory, database, s.dialect)
}

func (s *server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAnyRole(r.Context(), auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	var req createDirectoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid create directory request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PATH_REQUIRED", "path is required", false, nil)
		return
	}
	dir, ok := s.directoryOrError(w, r, req.Path)
	if !ok {
		return
	}
	if err := catalog.EnsureDirectory(dir); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "DIRECTORY_CREATE_FAILED", "failed to create directory", false, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"directory": dir})
}

func (s *server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	dir, ok := s.directoryOrError(w, r, r.URL.Query().Get("directory"))
	if !ok {
		return
	}
	databases, err := catalog.ListDatabases(dir, s.dialect)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "DIRECTORY_NOT_FOUND", "directory does not exist", false, map[string]any{"directory": dir})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to list databases", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directory": dir,
		"engine":    string(s.dialect),
		"databases": databases,
	})
}

func (s *server) directoryOrError(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	dir, err := s.resolveDirectory(raw)
	if err != nil {
		if errors.Is(err, errDirectoryOutsideDataDir) {
			writeError(r.Context(), w, http.StatusForbidden, "DIRECTORY_NOT_ALLOWED", err.Error(), false, nil)
			return "", false
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DIRECTORY_RESOLVE_FAILED", err.Error(), false, nil)
		return "", false
	}
	return dir, true
}

// databaseOrError resolves the directory and the database file path in one go.
func (s *server) databaseOrError(w http.ResponseWriter, r *http.Request, rawDirectory, database string) (string, string, bool) {
	dir, ok := s.directoryOrError(w, r, rawDirectory)
	if !ok {
		return "", "", false
	}
	path, err := s.databasePath(dir, database)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DATABASE_NAME", err.Error(), false, nil)
		return "", "", false
	}
	return dir, path, true
}

func writeDatabaseNotFound(w http.ResponseWriter, r *http.Request, database string) {
	writeError(r.Context(), w, http.StatusNotFound, "DATABASE_NOT_FOUND", "database does not exist", false, map[string]any{"database": database})
}
