package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MikeSquared-Agency/okrsync/internal/calllog"
)

// WriteCallLog persists one boundary call. It satisfies calllog.Sink.
func (s *Store) WriteCallLog(ctx context.Context, e calllog.Entry) error {
	req, err := jsonColumn(e.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := jsonColumn(e.Response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_call_logs (id, logged_at, method, endpoint, request, response, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.Method, e.Endpoint, req, resp, e.Error, e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

// ListCallLogs returns the most recent entries, newest first.
func (s *Store) ListCallLogs(ctx context.Context, limit int) ([]calllog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, logged_at, method, endpoint, request, response, error, duration_ms
		FROM api_call_logs ORDER BY logged_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query call logs: %w", err)
	}
	defer rows.Close()

	var entries []calllog.Entry
	for rows.Next() {
		var e calllog.Entry
		var req, resp []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Method, &e.Endpoint, &req, &resp, &e.Error, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		if len(req) > 0 {
			e.Request = json.RawMessage(req)
		}
		if len(resp) > 0 {
			e.Response = json.RawMessage(resp)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountCallLogs counts persisted entries for one endpoint.
func (s *Store) CountCallLogs(ctx context.Context, method, endpoint string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM api_call_logs WHERE method = $1 AND endpoint = $2",
		method, endpoint,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count call logs: %w", err)
	}
	return n, nil
}

func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
