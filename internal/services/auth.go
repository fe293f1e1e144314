package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	otpDigits         = 6
	defaultOTPTTL     = 10 * time.Minute
	otpKeyPrefix      = "otp:"
	otpFailurePrefix  = "otp-failures:"
	maxOTPFailures    = 5
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService handles registration, login and the password reset flow.
type AuthService struct {
	users    *UserService
	repo     UserRepository
	otps     OTPStore
	notifier Notifier
	otpTTL   time.Duration
}

func NewAuthService(users *UserService, repo UserRepository, otps OTPStore, notifier Notifier, otpTTL time.Duration) *AuthService {
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	return &AuthService{
		users:    users,
		repo:     repo,
		otps:     otps,
		notifier: notifier,
		otpTTL:   otpTTL,
	}
}

// Register creates a regular user account.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (types.User, error) {
	return s.users.Create(ctx, email, name, password, types.RoleUser)
}

// Login verifies credentials. A user flagged for a password reset gets
// ErrPasswordResetRequired before the password is looked at.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if user.RequirePasswordReset {
		return user, ErrPasswordResetRequired
	}
	if !checkSecret(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset issues a one-time code for email. Unknown addresses
// succeed silently so the endpoint cannot be used to discover accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.FromContext(ctx).WithField("email", email).Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	hashed, err := hashSecret(code)
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, otpKeyPrefix+email, hashed, s.otpTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.otps.Delete(ctx, otpFailurePrefix+email); err != nil {
		return fmt.Errorf("reset otp failures: %w", err)
	}

	notify(ctx, s.notifier, types.Notification{
		Type: types.NotificationPasswordResetOTP,
		To:   user.Email,
		Name: user.Name,
		Data: map[string]string{
			"otp":       code,
			"expiresIn": s.otpTTL.String(),
		},
	})
	return nil
}

// VerifyOTP checks and consumes the code issued for email. The code is
// discarded after maxOTPFailures wrong guesses.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrMissingFields
	}

	hashed, ok, err := s.otps.Get(ctx, otpKeyPrefix+email)
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if !ok {
		return ErrInvalidOTP
	}
	if !checkSecret(hashed, code) {
		return s.recordOTPFailure(ctx, email)
	}
	if err := s.discardOTP(ctx, email); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func (s *AuthService) recordOTPFailure(ctx context.Context, email string) error {
	failures, _, err := s.otps.Incr(ctx, otpFailurePrefix+email, s.otpTTL)
	if err != nil {
		return fmt.Errorf("count otp failure: %w", err)
	}
	if failures >= maxOTPFailures {
		logger.FromContext(ctx).WithField("email", email).Warn("otp discarded after repeated failures")
		if err := s.discardOTP(ctx, email); err != nil {
			return fmt.Errorf("discard otp: %w", err)
		}
	}
	return ErrInvalidOTP
}

func (s *AuthService) discardOTP(ctx context.Context, email string) error {
	if err := s.otps.Delete(ctx, otpKeyPrefix+email); err != nil {
		return err
	}
	return s.otps.Delete(ctx, otpFailurePrefix+email)
}

// ResetPassword sets a new password and clears the reset flag.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	hashed, err := hashSecret(newPassword)
	if err != nil {
		return err
	}
	user, err := s.users.replacePassword(ctx, email, hashed)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).WithField("user", user.ID).Info("password reset completed")
	return nil
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

func checkSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func generateOTP() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// notify hands n to the notifier. Delivery failures are logged and never
// fail the calling operation.
func notify(ctx context.Context, notifier Notifier, n types.Notification) {
	if notifier == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("type", n.Type).Warn("failed to publish notification")
	}
}
