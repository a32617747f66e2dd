package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"daftar/internal/audit"
	"daftar/internal/platform/config"
	dErrors "daftar/pkg/domain-errors"
)

// Service authenticates the admin user and mints admin tokens.
type Service struct {
	username string
	hash     []byte
	key      []byte
	tokenTTL time.Duration
	limit    int
	window   time.Duration
	attempts Attempts
	audit    audit.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg config.Admin, signingKey string, limits config.Limits, attempts Attempts, opts ...Option) *Service {
	s := &Service{
		username: cfg.Username,
		hash:     []byte(cfg.PasswordHash),
		key:      []byte(signingKey),
		tokenTTL: cfg.TokenTTL,
		limit:    limits.AdminLoginAttempts,
		window:   limits.AdminLoginWindow,
		attempts: attempts,
		audit:    audit.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Login checks credentials against the configured admin account. Failures
// are persisted per source; once the window fills the source is locked out
// even across restarts. Successful logins do not consume the window.
func (s *Service) Login(ctx context.Context, source, username, password string) (string, error) {
	now := s.now().UTC()
	failed, err := s.attempts.Count(ctx, source, now.Add(-s.window))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "count login attempts")
	}
	if failed >= s.limit {
		s.logger.WarnContext(ctx, "admin login locked out", "source", source)
		return "", dErrors.New(dErrors.CodeRateLimited, "too many failed logins, try again later")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.hash, []byte(password)) == nil
	if !userOK || !passOK {
		if err := s.attempts.Append(ctx, source, now); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "record login attempt")
		}
		_ = s.audit.Emit(ctx, audit.ActionAdminLoginRejected, map[string]any{"source": source})
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	claims := adminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign admin token")
	}
	_ = s.audit.Emit(ctx, audit.ActionAdminLoginSucceeded, map[string]any{"source": source})
	s.logger.InfoContext(ctx, "admin logged in", "source", source)
	return token, nil
}

// Verify validates an admin token.
func (s *Service) Verify(token string) error {
	var claims adminClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid || claims.Role != "admin" {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid admin token")
	}
	return nil
}
