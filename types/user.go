package types

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id" bson:"_id"`

	// Email is the user's email address. It is unique and stored lower-cased.
	Email string `json:"email" db:"email" bson:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name" bson:"name"`

	// Role indicates the user's authorization level within the system
	// ("admin" or "user").
	Role string `json:"role" db:"role" bson:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"passwordHash"`

	// RequirePasswordReset blocks login until the user completes a password
	// reset. It is set whenever an admin changes the user's role.
	RequirePasswordReset bool `json:"requirePasswordReset" db:"require_password_reset" bson:"requirePasswordReset"`

	// AvatarURL points at the uploaded avatar, if any.
	AvatarURL string `json:"avatarUrl,omitempty" db:"avatar_url" bson:"avatarUrl,omitempty"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// UserSummary is the public projection of a user embedded in other resources.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}

// UserWithStats is a user row enriched with activity counters for the admin console.
type UserWithStats struct {
	User
	CampaignsCreated int     `json:"campaignsCreated"`
	DonationsMade    int     `json:"donationsMade"`
	TotalDonated     float64 `json:"totalDonated"`
}
