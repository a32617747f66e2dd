package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"daftar/internal/admin"
	"daftar/internal/otp"
	"daftar/internal/platform/metrics"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFrom returns the authenticated identity id placed by sessionAuth.
func identityFrom(ctx context.Context) domain.IdentityID {
	id, _ := ctx.Value(identityKey).(domain.IdentityID)
	return id
}

// requestLogger logs every request and records its latency histogram keyed by
// the chi route pattern, so path parameters do not explode the label space.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
					Observe(elapsed.Seconds())
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

// sessionAuth requires a valid bearer session token and stores the identity
// id in the request context.
func sessionAuth(issuer *otp.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, dErrors.New(dErrors.CodeUnauthorized, "missing session token"))
				return
			}
			id, err := issuer.Parse(token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// optionalSession decodes a bearer token when one is supplied but lets
// anonymous requests through. Code verification uses it: a guest upgrading
// carries a session, a fresh login does not.
func optionalSession(issuer *otp.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				id, err := issuer.Parse(token)
				if err != nil {
					writeError(w, r, err)
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminAuth requires a valid admin bearer token.
func adminAuth(svc *admin.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, dErrors.New(dErrors.CodeUnauthorized, "missing admin token"))
				return
			}
			if err := svc.Verify(token); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// clientSource is the rate-limit key for unauthenticated endpoints: the first
// forwarded address when one is present, otherwise the peer address.
func clientSource(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
