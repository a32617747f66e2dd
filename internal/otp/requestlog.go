package otp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "daftar/pkg/platform/tx"
)

// LogEntry is one recorded code request. The log is append-only; limits are
// windowed counts over it.
type LogEntry struct {
	Phone     string
	Source    string
	Device    string
	CreatedAt time.Time
}

// RequestLog is the rate-accounting boundary.
type RequestLog interface {
	Append(ctx context.Context, e LogEntry) error
	CountByPhone(ctx context.Context, phone string, since time.Time) (int, error)
	CountBySource(ctx context.Context, source string, since time.Time) (int, error)
	// ListByPhone supports the admin inspection surface, newest first.
	ListByPhone(ctx context.Context, phone string, limit int) ([]LogEntry, error)
	// Reset deletes log rows for a phone or source, lifting its window.
	ResetPhone(ctx context.Context, phone string) error
	ResetSource(ctx context.Context, source string) error
}

// PostgresRequestLog persists the request log.
type PostgresRequestLog struct {
	db *sql.DB
}

func NewPostgresRequestLog(db *sql.DB) *PostgresRequestLog {
	return &PostgresRequestLog{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresRequestLog) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresRequestLog) Append(ctx context.Context, e LogEntry) error {
	const q = `
		INSERT INTO otp_request_log (phone, source, device, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.execer(ctx).ExecContext(ctx, q, e.Phone, e.Source, e.Device, e.CreatedAt); err != nil {
		return fmt.Errorf("append otp request log: %w", err)
	}
	return nil
}

func (s *PostgresRequestLog) CountByPhone(ctx context.Context, phone string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM otp_request_log WHERE phone = $1 AND created_at >= $2`
	return s.count(ctx, q, phone, since)
}

func (s *PostgresRequestLog) CountBySource(ctx context.Context, source string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM otp_request_log WHERE source = $1 AND created_at >= $2`
	return s.count(ctx, q, source, since)
}

func (s *PostgresRequestLog) count(ctx context.Context, q string, key string, since time.Time) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, q, key, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count otp requests: %w", err)
	}
	return n, nil
}

func (s *PostgresRequestLog) ListByPhone(ctx context.Context, phone string, limit int) ([]LogEntry, error) {
	const q = `
		SELECT phone, source, device, created_at
		FROM otp_request_log
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.execer(ctx).QueryContext(ctx, q, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("list otp requests: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Phone, &e.Source, &e.Device, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan otp request: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresRequestLog) ResetPhone(ctx context.Context, phone string) error {
	const q = `DELETE FROM otp_request_log WHERE phone = $1`
	if _, err := s.execer(ctx).ExecContext(ctx, q, phone); err != nil {
		return fmt.Errorf("reset otp phone window: %w", err)
	}
	return nil
}

func (s *PostgresRequestLog) ResetSource(ctx context.Context, source string) error {
	const q = `DELETE FROM otp_request_log WHERE source = $1`
	if _, err := s.execer(ctx).ExecContext(ctx, q, source); err != nil {
		return fmt.Errorf("reset otp source window: %w", err)
	}
	return nil
}
