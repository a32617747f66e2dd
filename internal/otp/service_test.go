package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daftar/internal/identity"
	"daftar/internal/messaging"
	"daftar/internal/platform/config"
	"daftar/internal/platform/postgres"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

type fakeSender struct {
	sent []struct{ Phone, Text string }
	fail bool
}

func (f *fakeSender) Send(_ context.Context, phone, text string) (string, error) {
	if f.fail {
		return "", errors.New("gateway down")
	}
	f.sent = append(f.sent, struct{ Phone, Text string }{phone, text})
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeSender) QueryStatus(context.Context, string) (messaging.Status, error) {
	return messaging.StatusDelivered, nil
}

type fixture struct {
	svc        *Service
	sender     *fakeSender
	challenges *MemoryChallenges
	log        *MemoryRequestLog
	identities *identity.MemoryStore
	codes      []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sender:     &fakeSender{},
		challenges: NewMemoryChallenges(),
		log:        NewMemoryRequestLog(),
		identities: identity.NewMemoryStore(),
	}
	logger := slog.New(slog.DiscardHandler)
	merger := identity.NewMerger(postgres.NewMemTxRunner(), f.identities, nil,
		identity.WithMergerLogger(logger))
	issuer := NewTokenIssuer("test-key", time.Hour)

	seq := 0
	f.svc = NewService(f.challenges, f.log, f.sender, f.identities, merger, issuer,
		config.DefaultLimits(), "992987654321",
		WithLogger(logger),
		WithCodeGenerator(func() (string, error) {
			seq++
			code := fmt.Sprintf("%06d", 100000+seq)
			f.codes = append(f.codes, code)
			return code, nil
		}))
	return f
}

func (f *fixture) lastCode() string {
	return f.codes[len(f.codes)-1]
}

func TestServiceRequestCode(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a code, dispatches it, and logs the request", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.RequestCode(ctx, RequestInput{
			Phone: "900000001", Source: "10.0.0.1", UserAgent: "Mozilla/5.0 (iPhone)",
		})
		require.NoError(t, err)

		assert.Equal(t, "992900000001", res.Phone, "nine digits get the country prefix")
		assert.False(t, res.Review)
		require.Len(t, f.sender.sent, 1)
		assert.Contains(t, f.sender.sent[0].Text, f.lastCode())

		n, err := f.log.CountByPhone(ctx, "992900000001", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("review phone gets the fixed code and no SMS", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.RequestCode(ctx, RequestInput{Phone: "992987654321", Source: "10.0.0.1"})
		require.NoError(t, err)

		assert.True(t, res.Review)
		assert.Empty(t, f.sender.sent)
		code, err := f.challenges.Get(ctx, "992987654321")
		require.NoError(t, err)
		assert.Equal(t, "111111", code)

		n, err := f.log.CountByPhone(ctx, "992987654321", time.Time{})
		require.NoError(t, err)
		assert.Zero(t, n, "review requests never count against limits")
	})

	t.Run("source window caps requests across phones", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			_, err := f.svc.RequestCode(ctx, RequestInput{
				Phone:  fmt.Sprintf("90000001%d", i),
				Source: "10.0.0.9",
			})
			require.NoError(t, err)
		}

		_, err := f.svc.RequestCode(ctx, RequestInput{Phone: "900000099", Source: "10.0.0.9"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	})

	t.Run("phone window caps requests across sources", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 3; i++ {
			_, err := f.svc.RequestCode(ctx, RequestInput{
				Phone:  "900000002",
				Source: fmt.Sprintf("10.0.1.%d", i),
			})
			require.NoError(t, err)
		}

		_, err := f.svc.RequestCode(ctx, RequestInput{Phone: "900000002", Source: "10.0.1.99"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	})

	t.Run("failed dispatch neither counts nor stores a code", func(t *testing.T) {
		f := newFixture(t)
		f.sender.fail = true

		_, err := f.svc.RequestCode(ctx, RequestInput{Phone: "900000003", Source: "10.0.0.1"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProvider))

		n, err := f.log.CountByPhone(ctx, "992900000003", time.Time{})
		require.NoError(t, err)
		assert.Zero(t, n)
		_, err = f.challenges.Get(ctx, "992900000003")
		assert.Error(t, err)
	})

	t.Run("re-requesting replaces the previous code", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RequestCode(ctx, RequestInput{Phone: "900000004", Source: "10.0.0.1"})
		require.NoError(t, err)
		old := f.lastCode()
		_, err = f.svc.RequestCode(ctx, RequestInput{Phone: "900000004", Source: "10.0.0.2"})
		require.NoError(t, err)

		_, err = f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000004", Code: old})
		require.Error(t, err)
		_, err = f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000004", Code: f.lastCode()})
		require.NoError(t, err)
	})
}

func TestServiceVerifyCode(t *testing.T) {
	ctx := context.Background()

	request := func(t *testing.T, f *fixture, phone string) string {
		t.Helper()
		_, err := f.svc.RequestCode(ctx, RequestInput{Phone: phone, Source: "10.0.0.1"})
		require.NoError(t, err)
		return f.lastCode()
	}

	t.Run("correct code creates a verified identity and a session", func(t *testing.T) {
		f := newFixture(t)
		code := request(t, f, "900000010")

		sess, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000010", Code: code})
		require.NoError(t, err)

		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, identity.KindVerified, sess.Identity.Kind)
		assert.Equal(t, "992900000010", sess.Identity.Phone)
	})

	t.Run("second login lands on the same identity", func(t *testing.T) {
		f := newFixture(t)
		code := request(t, f, "900000011")
		first, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000011", Code: code})
		require.NoError(t, err)

		code = request(t, f, "900000011")
		second, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000011", Code: code})
		require.NoError(t, err)

		assert.Equal(t, first.Identity.ID, second.Identity.ID)
	})

	t.Run("wrong code leaves the challenge usable", func(t *testing.T) {
		f := newFixture(t)
		code := request(t, f, "900000012")

		_, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000012", Code: "000000"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000012", Code: code})
		require.NoError(t, err)
	})

	t.Run("a consumed code cannot be replayed", func(t *testing.T) {
		f := newFixture(t)
		code := request(t, f, "900000013")

		_, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000013", Code: code})
		require.NoError(t, err)
		_, err = f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000013", Code: code})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
	})

	t.Run("verifying with no challenge reads as expired", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000014", Code: "123456"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
	})

	t.Run("guest session is promoted in place on first login", func(t *testing.T) {
		f := newFixture(t)
		guest, err := f.svc.StartGuest(ctx, "ru")
		require.NoError(t, err)
		assert.Equal(t, identity.KindEphemeral, guest.Identity.Kind)

		code := request(t, f, "900000015")
		sess, err := f.svc.VerifyCode(ctx, VerifyInput{
			Phone: "900000015", Code: code, ActingID: guest.Identity.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, guest.Identity.ID, sess.Identity.ID, "guest keeps its id")
		assert.Equal(t, identity.KindVerified, sess.Identity.Kind)
	})

	t.Run("guest folds into an existing account for the phone", func(t *testing.T) {
		f := newFixture(t)
		code := request(t, f, "900000016")
		established, err := f.svc.VerifyCode(ctx, VerifyInput{Phone: "900000016", Code: code})
		require.NoError(t, err)

		guest, err := f.svc.StartGuest(ctx, "")
		require.NoError(t, err)
		code = request(t, f, "900000016")
		sess, err := f.svc.VerifyCode(ctx, VerifyInput{
			Phone: "900000016", Code: code, ActingID: guest.Identity.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, established.Identity.ID, sess.Identity.ID)
		_, err = f.identities.GetByID(ctx, guest.Identity.ID)
		assert.Error(t, err, "guest row is gone after the merge")
	})
}

func TestTokenIssuer(t *testing.T) {
	t.Run("round-trips the identity id", func(t *testing.T) {
		issuer := NewTokenIssuer("key", time.Hour)
		id := domain.NewIdentityID()

		token, err := issuer.Issue(id)
		require.NoError(t, err)
		parsed, err := issuer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		token, err := NewTokenIssuer("key-a", time.Hour).Issue(domain.NewIdentityID())
		require.NoError(t, err)

		_, err = NewTokenIssuer("key-b", time.Hour).Parse(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewTokenIssuer("key", time.Hour).Parse("not-a-token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
