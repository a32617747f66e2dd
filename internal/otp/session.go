package otp

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// TokenIssuer mints and parses session tokens. A token binds a session to an
// identity id; nothing else is trusted from the client.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(key string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: []byte(key), ttl: ttl, now: time.Now}
}

type sessionClaims struct {
	IdentityID string `json:"iid"`
	jwt.RegisteredClaims
}

// Issue returns a signed session token for the identity.
func (i *TokenIssuer) Issue(identityID domain.IdentityID) (string, error) {
	now := i.now().UTC()
	claims := sessionClaims{
		IdentityID: identityID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return token, nil
}

// Parse validates a session token and returns the identity it belongs to.
func (i *TokenIssuer) Parse(token string) (domain.IdentityID, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil || !parsed.Valid {
		return domain.IdentityID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	id, err := domain.ParseIdentityID(claims.IdentityID)
	if err != nil {
		return domain.IdentityID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return id, nil
}
