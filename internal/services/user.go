package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
)

// Capability names a privileged action. Capabilities are resolved against the
// persisted user record on every check, never against token claims.
type Capability string

const (
	CapModerateCampaigns Capability = "moderate_campaigns"
	CapManageUsers       Capability = "manage_users"
	CapTriageContacts    Capability = "triage_contacts"
	CapViewDashboard     Capability = "view_dashboard"
	CapReconcileFunds    Capability = "reconcile_funds"
)

var capabilityRoles = map[Capability][]string{
	CapModerateCampaigns: {types.RoleAdmin},
	CapManageUsers:       {types.RoleAdmin},
	CapTriageContacts:    {types.RoleAdmin},
	CapViewDashboard:     {types.RoleAdmin},
	CapReconcileFunds:    {types.RoleAdmin},
}

// Allows reports whether role grants capability.
func (c Capability) Allows(role string) bool {
	for _, allowed := range capabilityRoles[c] {
		if strings.EqualFold(allowed, role) {
			return true
		}
	}
	return false
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	tx       Transactor
	notifier Notifier
}

func NewUserService(repo UserRepository, tx Transactor, notifier Notifier) *UserService {
	return &UserService{repo: repo, tx: tx, notifier: notifier}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, userLookupError(err)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return types.User{}, userLookupError(err)
	}
	return user, nil
}

// Authenticate resolves the identity carried by a bearer token to a current
// user record. Users flagged for a password reset are refused.
func (s *UserService) Authenticate(ctx context.Context, id string) (types.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if user.RequirePasswordReset {
		return user, ErrPasswordResetRequired
	}
	return user, nil
}

// Authorize re-reads the user and checks that their current role grants capability.
func (s *UserService) Authorize(ctx context.Context, id string, capability Capability) (types.User, error) {
	user, err := s.Authenticate(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if !capability.Allows(user.Role) {
		return types.User{}, ErrForbidden
	}
	return user, nil
}

// Create registers a user with the given role after validating credentials.
func (s *UserService) Create(ctx context.Context, email, name, password, role string) (types.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return types.User{}, ErrMissingFields
	}
	if !validEmail(email) {
		return types.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return types.User{}, ErrWeakPassword
	}
	if !types.ValidRole(role) {
		return types.User{}, ErrInvalidRole
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := hashSecret(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetRole changes the role of target on behalf of actor. The change forces
// the target through a password reset before their next session.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID, role string) (types.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !types.ValidRole(role) {
		return types.User{}, ErrInvalidRole
	}
	if actorID == targetID {
		return types.User{}, ErrSelfRoleChange
	}

	var updated types.User
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.repo.GetForUpdate(ctx, targetID)
		if err != nil {
			return userLookupError(err)
		}
		if target.Role == role {
			updated = target
			return nil
		}

		if target.Role == types.RoleAdmin && role != types.RoleAdmin {
			admins, err := s.repo.CountByRole(ctx, types.RoleAdmin)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		target.Role = role
		target.RequirePasswordReset = true
		updated, err = s.repo.Update(ctx, target)
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	if changed {
		metrics.RoleChanges.WithLabelValues(role).Inc()
		logger.FromContext(ctx).WithField("target", targetID).WithField("role", role).Info("user role changed")
		notify(ctx, s.notifier, types.Notification{
			Type: types.NotificationRoleChanged,
			To:   updated.Email,
			Name: updated.Name,
			Data: map[string]string{"role": role},
		})
	}
	return updated, nil
}

// ProfileUpdate carries optional profile changes. Empty fields are left untouched.
type ProfileUpdate struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies changes to the user's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (types.User, error) {
	var updated types.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}

		if name := strings.TrimSpace(in.Name); name != "" {
			user.Name = name
		}

		if email := normalizeEmail(in.Email); email != "" && email != user.Email {
			if !validEmail(email) {
				return ErrInvalidEmail
			}
			if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
				return ErrEmailTaken
			} else if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("check email: %w", err)
			}
			user.Email = email
		}

		if in.NewPassword != "" {
			if in.CurrentPassword == "" || !checkSecret(user.PasswordHash, in.CurrentPassword) {
				return ErrIncorrectPassword
			}
			if len(in.NewPassword) < minPasswordLength {
				return ErrWeakPassword
			}
			hashed, err := hashSecret(in.NewPassword)
			if err != nil {
				return err
			}
			user.PasswordHash = hashed
		}

		updated, err = s.repo.Update(ctx, user)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrEmailTaken
			}
			return fmt.Errorf("update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return updated, nil
}

// SetAvatar stores a new avatar URL and returns the one it replaced.
func (s *UserService) SetAvatar(ctx context.Context, userID, avatarURL string) (types.User, string, error) {
	var (
		updated  types.User
		previous string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}
		previous = user.AvatarURL
		user.AvatarURL = avatarURL
		updated, err = s.repo.Update(ctx, user)
		if err != nil {
			return fmt.Errorf("update avatar: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.User{}, "", err
	}
	return updated, previous, nil
}

// replacePassword stores a new hash for the account behind email and clears
// its forced-reset flag. Other fields are re-read under the row lock.
func (s *UserService) replacePassword(ctx context.Context, email, hashed string) (types.User, error) {
	var updated types.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return userLookupError(err)
		}
		user, err := s.repo.GetForUpdate(ctx, found.ID)
		if err != nil {
			return userLookupError(err)
		}
		user.PasswordHash = hashed
		user.RequirePasswordReset = false
		updated, err = s.repo.Update(ctx, user)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	return updated, err
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func userLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
