// Package otp issues and verifies one-time login codes. Challenges live in
// Redis under a single key per phone, so re-requesting a code invalidates the
// previous one; request-rate accounting lives in an append-only Postgres log
// so limits survive restarts.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"daftar/internal/platform/redis"
	"daftar/pkg/platform/sentinel"
)

// ChallengeStore holds the single active code per phone.
type ChallengeStore interface {
	// Put stores the code, replacing any active challenge for the phone.
	Put(ctx context.Context, phone, code string, ttl time.Duration) error
	// Get returns the active code without consuming it.
	Get(ctx context.Context, phone string) (string, error)
	// Consume removes and returns the active code.
	Consume(ctx context.Context, phone string) (string, error)
}

// RedisChallenges implements ChallengeStore on a Redis key with TTL.
type RedisChallenges struct {
	client *redis.Client
}

func NewRedisChallenges(client *redis.Client) *RedisChallenges {
	return &RedisChallenges{client: client}
}

func challengeKey(phone string) string {
	return "otp:challenge:" + phone
}

func (s *RedisChallenges) Put(ctx context.Context, phone, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, challengeKey(phone), code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}
	return nil
}

func (s *RedisChallenges) Get(ctx context.Context, phone string) (string, error) {
	code, err := s.client.Get(ctx, challengeKey(phone)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load otp challenge: %w", err)
	}
	return code, nil
}

func (s *RedisChallenges) Consume(ctx context.Context, phone string) (string, error) {
	code, err := s.client.GetDel(ctx, challengeKey(phone)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume otp challenge: %w", err)
	}
	return code, nil
}
