package handlers

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/types"
	"github.com/sirupsen/logrus"
)

const forgotPasswordPath = "/forgot-password"

// PasswordResetResponse tells the client to send the user through the
// password reset flow.
type PasswordResetResponse struct {
	Message              string `json:"message"`
	RequirePasswordReset bool   `json:"requirePasswordReset"`
	Email                string `json:"email,omitempty"`
	RedirectTo           string `json:"redirectTo"`
}

// Auth verifies bearer tokens. Tokens carry identity only: the user record
// is re-read on every request and roles are never taken from claims.
type Auth struct {
	secret []byte
	users  *services.UserService
}

func NewAuth(jwtSecret string, users *services.UserService) *Auth {
	return &Auth{secret: []byte(jwtSecret), users: users}
}

// Required rejects anonymous requests and users flagged for a password reset.
func (a *Auth) Required(next http.Handler) http.Handler {
	return a.resolve(next, a.users.Authenticate)
}

// RequireCapability is Required plus a capability check against the user's
// current role.
func (a *Auth) RequireCapability(capability services.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.resolve(next, func(ctx context.Context, id string) (types.User, error) {
			return a.users.Authorize(ctx, id, capability)
		})
	}
}

// Optional attaches the user when a valid token is present and lets
// anonymous requests through.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := parseTokenSubject(tokenString, a.secret)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := a.users.Authenticate(r.Context(), subject)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (a *Auth) resolve(next http.Handler, load func(ctx context.Context, id string) (types.User, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := parseTokenSubject(tokenString, a.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := load(r.Context(), subject)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case errors.Is(err, services.ErrPasswordResetRequired):
			writeJSON(w, http.StatusForbidden, PasswordResetResponse{
				Message:              "password reset required",
				RequirePasswordReset: true,
				Email:                user.Email,
				RedirectTo:           forgotPasswordPath,
			})
			return
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, err.Error())
			return
		default:
			writeServiceError(w, r, err, "failed to authenticate")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func withUser(ctx context.Context, user types.User) context.Context {
	ctx = context.WithValue(ctx, contextSubjectKey, user.ID)
	ctx = context.WithValue(ctx, contextUserKey, user)
	ctx, _ = logger.ContextWithIdentity(ctx, user.ID)
	return ctx
}

// RateLimit refuses requests once the client address exceeds the limiter's
// budget. Counter failures let the request through.
func RateLimit(limiter *cache.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).WithField("limiter", limiter.Name).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimited.WithLabelValues(limiter.Name).Inc()
				logger.FromContext(r.Context()).WithFields(logrus.Fields{
					"limiter": limiter.Name,
					"client":  key,
				}).Info("request rate limited")
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr returns the client IP from RemoteAddr. Forwarding headers only
// count when the router runs middleware.RealIP.
func clientAddr(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
