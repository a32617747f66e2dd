package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryRequestLog is the in-memory RequestLog for unit tests.
type MemoryRequestLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryRequestLog() *MemoryRequestLog {
	return &MemoryRequestLog{}
}

func (s *MemoryRequestLog) Append(_ context.Context, e LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryRequestLog) CountByPhone(_ context.Context, phone string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Phone == phone && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryRequestLog) CountBySource(_ context.Context, source string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Source == source && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryRequestLog) ListByPhone(_ context.Context, phone string, limit int) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LogEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].Phone == phone {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *MemoryRequestLog) ResetPhone(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Phone != phone {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *MemoryRequestLog) ResetSource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Source != source {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}
