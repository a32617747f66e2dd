package otp

import (
	"context"
	"sync"
	"time"

	"daftar/pkg/platform/sentinel"
)

// MemoryChallenges is the in-memory ChallengeStore for unit tests.
type MemoryChallenges struct {
	mu    sync.Mutex
	codes map[string]memoryChallenge
	now   func() time.Time
}

type memoryChallenge struct {
	code      string
	expiresAt time.Time
}

func NewMemoryChallenges() *MemoryChallenges {
	return &MemoryChallenges{codes: make(map[string]memoryChallenge), now: time.Now}
}

// SetClock overrides time for expiry tests.
func (s *MemoryChallenges) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryChallenges) Put(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryChallenge{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryChallenges) Get(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.codes[phone]
	if !ok || s.now().After(ch.expiresAt) {
		delete(s.codes, phone)
		return "", sentinel.ErrNotFound
	}
	return ch.code, nil
}

func (s *MemoryChallenges) Consume(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.codes[phone]
	delete(s.codes, phone)
	if !ok || s.now().After(ch.expiresAt) {
		return "", sentinel.ErrNotFound
	}
	return ch.code, nil
}
