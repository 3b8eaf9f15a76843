package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

// RequireMethod validates that the request uses the given method. Returns
// false after writing a 405 when it does not.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// WriteJSON writes data as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteDetail writes a {detail} error body with the given status
func WriteDetail(w http.ResponseWriter, statusCode int, detail string) error {
	return WriteJSON(w, statusCode, map[string]string{"detail": detail})
}

// WriteError maps an error's kind to an HTTP status and writes a {detail}
// body. Unclassified errors become 500.
func WriteError(w http.ResponseWriter, err error) error {
	status := http.StatusInternalServerError
	switch models.KindOf(err) {
	case models.ErrInvalidArgument, models.ErrSchemaViolation, models.ErrParse:
		status = http.StatusBadRequest
	case models.ErrNotFound:
		status = http.StatusNotFound
	case models.ErrDuplicate, models.ErrConflict:
		status = http.StatusConflict
	case models.ErrRateLimited:
		status = http.StatusTooManyRequests
	}
	return WriteJSON(w, status, map[string]string{"detail": err.Error()})
}

// WriteStarted writes a 202 with the run created for an async operation
func WriteStarted(w http.ResponseWriter, run *models.PipelineRun) error {
	return WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"run":    run,
	})
}

// DecodeJSON decodes a request body into dst, mapping malformed payloads
// to an invalid_argument error
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return models.Errorf(models.ErrInvalidArgument, "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return models.Errorf(models.ErrInvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

// DecodeJSONOptional decodes a request body into dst, treating an empty
// body as the zero value. Used by trigger endpoints whose parameters are
// all optional.
func DecodeJSONOptional(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return models.Errorf(models.ErrInvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

// GetPaginationParams extracts page (1-indexed) and page_size from the
// query string. Defaults page=1, page_size=20, page_size capped at 100.
func GetPaginationParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if s := r.URL.Query().Get("page"); s != "" {
		if p, err := strconv.Atoi(s); err == nil && p >= 1 {
			page = p
		}
	}
	if s := r.URL.Query().Get("page_size"); s != "" {
		if ps, err := strconv.Atoi(s); err == nil && ps > 0 {
			pageSize = ps
			if pageSize > 100 {
				pageSize = 100
			}
		}
	}
	return page, pageSize
}

// PageBounds converts page/page_size to slice bounds over total items
func PageBounds(page, pageSize, total int) (start, end int) {
	start = (page - 1) * pageSize
	if start >= total {
		return total, total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

// PathSegment returns the index-th segment of the request path, counting
// from zero over the trimmed path, or "" when out of range.
// "/api/jobs/abc/click" → segment 2 is "abc".
func PathSegment(r *http.Request, index int) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if index < 0 || index >= len(parts) {
		return ""
	}
	return parts[index]
}

// QueryInt parses an integer query parameter, returning fallback when the
// parameter is absent or malformed
func QueryInt(r *http.Request, name string, fallback int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}

// QueryFloat parses a float query parameter with a fallback
func QueryFloat(r *http.Request, name string, fallback float64) float64 {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return fallback
}

// QueryBool parses a boolean query parameter, returning nil when absent
func QueryBool(r *http.Request, name string) *bool {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			return &v
		}
	}
	return nil
}
