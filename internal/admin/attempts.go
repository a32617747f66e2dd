// Package admin authenticates the operations user: bcrypt-checked
// credentials from the environment, a persisted failure window, and
// short-lived admin tokens for the review surface.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Attempts records failed logins per source address. Persisted, so the
// lockout window survives restarts.
type Attempts interface {
	Append(ctx context.Context, source string, at time.Time) error
	Count(ctx context.Context, source string, since time.Time) (int, error)
}

// PostgresAttempts persists failed logins.
type PostgresAttempts struct {
	db *sql.DB
}

func NewPostgresAttempts(db *sql.DB) *PostgresAttempts {
	return &PostgresAttempts{db: db}
}

func (s *PostgresAttempts) Append(ctx context.Context, source string, at time.Time) error {
	const q = `INSERT INTO admin_login_attempts (source, created_at) VALUES ($1, $2)`
	if _, err := s.db.ExecContext(ctx, q, source, at); err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}
	return nil
}

func (s *PostgresAttempts) Count(ctx context.Context, source string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM admin_login_attempts WHERE source = $1 AND created_at >= $2`
	var n int
	if err := s.db.QueryRowContext(ctx, q, source, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count login attempts: %w", err)
	}
	return n, nil
}

// MemoryAttempts is the in-memory Attempts for unit tests.
type MemoryAttempts struct {
	mu       sync.Mutex
	attempts []struct {
		source string
		at     time.Time
	}
}

func NewMemoryAttempts() *MemoryAttempts {
	return &MemoryAttempts{}
}

func (s *MemoryAttempts) Append(_ context.Context, source string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, struct {
		source string
		at     time.Time
	}{source, at})
	return nil
}

func (s *MemoryAttempts) Count(_ context.Context, source string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.source == source && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}
