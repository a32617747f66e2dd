package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mssola/useragent"

	"daftar/internal/identity"
	"daftar/internal/messaging"
	"daftar/internal/platform/config"
	"daftar/internal/platform/metrics"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
)

// reviewCode is the fixed code handed to the configured review phone so app
// reviewers can log in without a real SIM.
const reviewCode = "111111"

// Service implements phone login: code issuance behind persisted windowed
// limits, and verification that hands the session to the identity merger.
type Service struct {
	challenges ChallengeStore
	log        RequestLog
	sender     messaging.Sender
	identities identity.Store
	merger     *identity.Merger
	issuer     *TokenIssuer
	limits     config.Limits
	review     string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	generate   func() (string, error)
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides code generation, for tests.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.generate = fn }
}

func NewService(challenges ChallengeStore, log RequestLog, sender messaging.Sender,
	identities identity.Store, merger *identity.Merger, issuer *TokenIssuer,
	limits config.Limits, reviewPhone string, opts ...Option) *Service {
	s := &Service{
		challenges: challenges,
		log:        log,
		sender:     sender,
		identities: identities,
		merger:     merger,
		issuer:     issuer,
		limits:     limits,
		review:     reviewPhone,
		logger:     slog.Default(),
		now:        time.Now,
		generate:   generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

type RequestInput struct {
	Phone     string
	Source    string // caller address, the per-source limit key
	UserAgent string
}

type RequestResult struct {
	Phone  string
	Review bool
}

// RequestCode issues a login code to the phone. The configured review phone
// gets the fixed code with a long TTL and no SMS; everyone else passes the
// windowed limits (per source and per phone), gets a fresh six-digit code by
// SMS, and the request is logged. A failed dispatch aborts before anything is
// stored, so it neither counts against the limits nor leaves a live code.
func (s *Service) RequestCode(ctx context.Context, in RequestInput) (RequestResult, error) {
	phone, err := domain.NormalizePhone(in.Phone)
	if err != nil {
		return RequestResult{}, err
	}

	if s.review != "" && phone == s.review {
		if err := s.challenges.Put(ctx, phone, reviewCode, s.limits.ReviewCodeTTL); err != nil {
			return RequestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "store review challenge")
		}
		s.logger.InfoContext(ctx, "review code issued", "phone", phone)
		return RequestResult{Phone: phone, Review: true}, nil
	}

	now := s.now().UTC()
	if err := s.checkLimits(ctx, phone, in.Source, now); err != nil {
		return RequestResult{}, err
	}

	code, err := s.generate()
	if err != nil {
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate login code")
	}
	if _, err := s.sender.Send(ctx, phone, "Daftar login code: "+code); err != nil {
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeProvider, "dispatch login code")
	}

	if err := s.challenges.Put(ctx, phone, code, s.limits.OTPCodeTTL); err != nil {
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "store challenge")
	}
	if err := s.log.Append(ctx, LogEntry{
		Phone:     phone,
		Source:    in.Source,
		Device:    deviceLabel(in.UserAgent),
		CreatedAt: now,
	}); err != nil {
		return RequestResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record code request")
	}

	if s.metrics != nil {
		s.metrics.OTPIssued.Inc()
	}
	s.logger.InfoContext(ctx, "login code issued", "phone", phone, "source", in.Source)
	return RequestResult{Phone: phone}, nil
}

func (s *Service) checkLimits(ctx context.Context, phone, source string, now time.Time) error {
	bySource, err := s.log.CountBySource(ctx, source, now.Add(-s.limits.OTPSourceWindow))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "count requests by source")
	}
	if bySource >= s.limits.OTPPerSource {
		s.reject(ctx, "source", "phone", phone, "source", source)
		return dErrors.New(dErrors.CodeRateLimited, "too many code requests from this address")
	}

	byPhone, err := s.log.CountByPhone(ctx, phone, now.Add(-s.limits.OTPPhoneWindow))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "count requests by phone")
	}
	if byPhone >= s.limits.OTPPerPhone {
		s.reject(ctx, "phone", "phone", phone, "source", source)
		return dErrors.New(dErrors.CodeRateLimited, "too many code requests for this phone")
	}
	return nil
}

func (s *Service) reject(ctx context.Context, reason string, logArgs ...any) {
	if s.metrics != nil {
		s.metrics.OTPRejected.WithLabelValues(reason).Inc()
	}
	s.logger.WarnContext(ctx, "login code request rejected", append([]any{"reason", reason}, logArgs...)...)
}

type VerifyInput struct {
	Phone string
	Code  string
	// ActingID is the caller's current (possibly ephemeral) session identity.
	// Zero means the caller has no session yet.
	ActingID domain.IdentityID
}

// Session is a logged-in identity plus its token.
type Session struct {
	Identity identity.Identity
	Token    string
}

// VerifyCode checks the submitted code against the active challenge. A wrong
// code leaves the challenge in place; a correct one consumes it, resolves the
// phone through the identity merger, and issues a session token.
func (s *Service) VerifyCode(ctx context.Context, in VerifyInput) (Session, error) {
	phone, err := domain.NormalizePhone(in.Phone)
	if err != nil {
		return Session{}, err
	}

	active, err := s.challenges.Get(ctx, phone)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Session{}, dErrors.New(dErrors.CodeExpired, "code expired or was never requested")
	}
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "load challenge")
	}
	if subtle.ConstantTimeCompare([]byte(active), []byte(in.Code)) != 1 {
		return Session{}, dErrors.New(dErrors.CodeUnauthorized, "incorrect code")
	}
	if _, err := s.challenges.Consume(ctx, phone); err != nil {
		// Lost the race to another verify with the same code.
		return Session{}, dErrors.New(dErrors.CodeExpired, "code already used")
	}

	ident, err := s.resolveIdentity(ctx, in.ActingID, phone)
	if err != nil {
		return Session{}, err
	}
	token, err := s.issuer.Issue(ident.ID)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "login verified", "identity_id", ident.ID, "phone", phone)
	return Session{Identity: ident, Token: token}, nil
}

func (s *Service) resolveIdentity(ctx context.Context, actingID domain.IdentityID, phone string) (identity.Identity, error) {
	if !actingID.IsNil() {
		return s.merger.Resolve(ctx, actingID, phone)
	}

	ident, err := s.identities.GetByPhone(ctx, phone)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return identity.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "load identity by phone")
	}

	now := s.now().UTC()
	ident = identity.Identity{
		ID:         domain.NewIdentityID(),
		Kind:       identity.KindVerified,
		Phone:      phone,
		Language:   "tg",
		LastSeenAt: now,
		CreatedAt:  now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Concurrent first login with the same phone; adopt the winner.
			return s.identities.GetByPhone(ctx, phone)
		}
		return identity.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "create identity")
	}
	return ident, nil
}

// StartGuest creates an ephemeral identity and a session for it. Guests can
// work ledgers they are invited to; proving a phone later folds the guest
// into its canonical identity.
func (s *Service) StartGuest(ctx context.Context, language string) (Session, error) {
	if language == "" {
		language = "tg"
	}
	now := s.now().UTC()
	ident := identity.Identity{
		ID:         domain.NewIdentityID(),
		Kind:       identity.KindEphemeral,
		Language:   language,
		LastSeenAt: now,
		CreatedAt:  now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "create guest identity")
	}
	token, err := s.issuer.Issue(ident.ID)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "guest session started", "identity_id", ident.ID)
	return Session{Identity: ident, Token: token}, nil
}

func deviceLabel(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	os := ua.OS()
	switch {
	case name != "" && os != "":
		return name + " on " + os
	case name != "":
		return name
	default:
		return os
	}
}
