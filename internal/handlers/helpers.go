package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/detalia/storefront-api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds limit")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 8 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func parsePagination(query map[string][]string, defaultSize, maxSize int) (services.Pagination, error) {
	page := services.Pagination{PageSize: defaultSize}
	if values := query["page_token"]; len(values) > 0 {
		page.PageToken = strings.TrimSpace(values[0])
	}
	if values := query["page_size"]; len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		size, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			return page, errors.New("page_size must be an integer")
		}
		switch {
		case size <= 0:
			page.PageSize = defaultSize
		case size > maxSize:
			page.PageSize = maxSize
		default:
			page.PageSize = size
		}
	}
	return page, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp")
}

func parseStatusFilters(values []string) ([]services.OrderStatus, error) {
	if len(values) == 0 {
		return nil, nil
	}
	seen := make(map[services.OrderStatus]struct{})
	statuses := make([]services.OrderStatus, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			status := services.OrderStatus(trimmed)
			if !status.IsValid() {
				return nil, errors.New("unknown order status " + strconv.Quote(trimmed))
			}
			if _, dup := seen[status]; dup {
				continue
			}
			seen[status] = struct{}{}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}
