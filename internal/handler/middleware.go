package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/metrics"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// Header names understood by the API.
const (
	HeaderCollegeID     = "X-College-ID"
	HeaderAdminKey      = "X-Admin-Key"
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

type ctxKey struct{}

// collegeFrom returns the tenant resolved by RequireTenant. Routes mounted
// behind RequireTenant always have one.
func collegeFrom(r *http.Request) tenant.ID {
	id, _ := r.Context().Value(ctxKey{}).(tenant.ID)
	return id
}

// Claims are the bearer token claims accepted for tenant resolution.
type Claims struct {
	CollegeID string `json:"college_id"`
	jwt.RegisteredClaims
}

var (
	errNoToken      = errors.New("missing bearer token")
	errTokenInvalid = errors.New("invalid bearer token")
)

// TenantResolver extracts the college id from a request.
type TenantResolver struct {
	secret []byte
}

// NewTenantResolver returns a resolver. With a non-empty secret the college
// id comes from the college_id claim of an HMAC-signed bearer token;
// otherwise the X-College-ID header is trusted.
func NewTenantResolver(secret string) *TenantResolver {
	r := &TenantResolver{}
	if secret != "" {
		r.secret = []byte(secret)
	}
	return r
}

// Resolve returns the tenant of r.
func (tr *TenantResolver) Resolve(r *http.Request) (tenant.ID, error) {
	if tr.secret == nil {
		return tenant.Parse(r.Header.Get(HeaderCollegeID))
	}

	raw := bearerToken(r)
	if raw == "" {
		return "", errNoToken
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tr.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errTokenInvalid
	}
	id, err := tenant.Parse(claims.CollegeID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	// A header naming a different college is a client bug, not an override.
	if h := r.Header.Get(HeaderCollegeID); h != "" && h != id.String() {
		return "", fmt.Errorf("%w: %s does not match token", errTokenInvalid, HeaderCollegeID)
	}
	return id, nil
}

// SignToken returns an HS256 token carrying collegeID in the college_id
// claim, valid for ttl.
func (tr *TenantResolver) SignToken(collegeID tenant.ID, ttl time.Duration) (string, error) {
	if tr.secret == nil {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := Claims{
		CollegeID: collegeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tr.secret)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequireTenant resolves the college of each request and stores it on the
// request context for handlers to pass into the core.
func RequireTenant(tr *TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := tr.Resolve(r)
			switch {
			case errors.Is(err, tenant.ErrInvalid):
				writeError(w, http.StatusBadRequest, err.Error())
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, id)
			ctx = logging.ContextWithCollegeID(ctx, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminKey guards the college administration routes. An empty key
// disables the check.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAdminKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDWithLogging puts request and correlation ids on the context so
// every log line of the request carries them.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set(HeaderRequestID, requestID)
			}
			correlationID := r.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID = requestID
			}
			w.Header().Set(HeaderRequestID, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithCorrelationID(ctx, correlationID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog logs one line per request and records request metrics labelled
// with the matched route pattern.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, status, elapsed)

		ev := logging.Ctx(r.Context()).Info()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

// ShapingConfig configures CORS and rate limiting.
type ShapingConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// CORS returns a go-chi/cors middleware for the configured origins.
func (c ShapingConfig) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: c.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", HeaderCollegeID, HeaderAdminKey, HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         86400,
	})
}

// RateLimit returns an IP-keyed go-chi/httprate limiter, or a no-op when
// rate limiting is disabled.
func (c ShapingConfig) RateLimit() func(http.Handler) http.Handler {
	if c.RateLimitDisabled || c.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		c.RateLimitRequests,
		c.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}
