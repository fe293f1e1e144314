package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/services"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultResetTokenTTL = 10 * time.Minute
	resetTokenAudience   = "password-reset"
	forgotPasswordReply  = "if that email is registered, a verification code has been sent"
)

// AuthOptions configures token lifetimes and the password reset flow.
type AuthOptions struct {
	JWTSecret        string
	TokenTTL         time.Duration
	ResetTokenTTL    time.Duration
	ResetRequiresOTP bool
	LoginLimiter     *cache.Limiter
	ForgotLimiter    *cache.Limiter
	VerifyLimiter    *cache.Limiter
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	authService      *services.AuthService
	userService      *services.UserService
	validator        *validation.Validator
	secret           []byte
	tokenTTL         time.Duration
	resetTokenTTL    time.Duration
	resetRequiresOTP bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, v *validation.Validator, opts AuthOptions) *AuthHandler {
	h := &AuthHandler{
		authService:      authService,
		userService:      userService,
		validator:        v,
		secret:           []byte(opts.JWTSecret),
		tokenTTL:         opts.TokenTTL,
		resetTokenTTL:    opts.ResetTokenTTL,
		resetRequiresOTP: opts.ResetRequiresOTP,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = defaultTokenTTL
	}
	if h.resetTokenTTL <= 0 {
		h.resetTokenTTL = defaultResetTokenTTL
	}
	return h
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, userService *services.UserService, v *validation.Validator, auth *Auth, opts AuthOptions) {
	handler := NewAuthHandler(authService, userService, v, opts)

	r.Post("/register", handler.Register)
	r.With(limited(opts.LoginLimiter)...).Post("/login", handler.Login)
	r.With(auth.Required).Get("/me", handler.Me)
	r.With(limited(opts.ForgotLimiter)...).Post("/forgot-password", handler.ForgotPassword)
	r.With(limited(opts.VerifyLimiter)...).Post("/verify-otp", handler.VerifyOTP)
	r.Post("/reset-password", handler.ResetPassword)
}

func limited(l *cache.Limiter) []func(http.Handler) http.Handler {
	if l == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{RateLimit(l)}
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, h.validator, validation.Register, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to create user")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeServiceError(w, r, err, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a JWT. Accounts flagged for a
// password reset get 403 whatever password was submitted.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, h.validator, validation.Login, &req) {
		return
	}

	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrPasswordResetRequired) {
			writeJSON(w, http.StatusForbidden, PasswordResetResponse{
				Message:              "password reset required before signing in",
				RequirePasswordReset: true,
				Email:                user.Email,
				RedirectTo:           forgotPasswordPath,
			})
			return
		}
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeServiceError(w, r, err, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ForgotPassword issues a one-time code. The reply is the same whether or
// not the address is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeBody(w, r, h.validator, validation.ForgotPassword, &req) {
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, "failed to request password reset")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: forgotPasswordReply})
}

// VerifyOTP exchanges a valid code for a short-lived reset token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeBody(w, r, h.validator, validation.VerifyOTP, &req) {
		return
	}

	if err := h.authService.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		writeServiceError(w, r, err, "failed to verify code")
		return
	}

	token, err := issueResetToken(req.Email, h.secret, h.resetTokenTTL)
	if err != nil {
		writeServiceError(w, r, err, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, ResetTokenResponse{Message: "code verified", ResetToken: token})
}

// ResetPassword sets a new password and clears the reset flag.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeBody(w, r, h.validator, validation.ResetPassword, &req) {
		return
	}

	if h.resetRequiresOTP || req.ResetToken != "" {
		email, err := parseResetToken(req.ResetToken, h.secret)
		if err != nil || !strings.EqualFold(email, strings.TrimSpace(req.Email)) {
			writeServiceError(w, r, services.ErrInvalidResetToken, "failed to reset password")
			return
		}
	}

	if err := h.authService.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		writeServiceError(w, r, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password has been reset, please sign in"})
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
	ResetToken  string `json:"resetToken"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type ResetTokenResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

func issueToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func issueResetToken(email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToLower(strings.TrimSpace(email)),
		Audience:  jwt.ClaimStrings{resetTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseClaims(tokenString string, secret []byte, opts ...jwt.ParserOption) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return claims, err
	}
	if !token.Valid {
		return claims, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("missing subject")
	}
	return claims, nil
}

// parseTokenSubject accepts session tokens only. Reset tokens carry an
// audience and are refused.
func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims, err := parseClaims(tokenString, secret)
	if err != nil {
		return "", err
	}
	if len(claims.Audience) > 0 {
		return "", errors.New("unexpected audience")
	}
	return claims.Subject, nil
}

func parseResetToken(tokenString string, secret []byte) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", errors.New("missing reset token")
	}
	claims, err := parseClaims(tokenString, secret, jwt.WithAudience(resetTokenAudience))
	if err != nil {
		return "", err
	}
	if !slices.Contains(claims.Audience, resetTokenAudience) {
		return "", errors.New("invalid audience")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
