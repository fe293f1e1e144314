package services

import (
	"context"
	"time"

	"github.com/fundraiseer/apiserver/types"
)

// Transactor runs fn inside a single persistence transaction. Repositories
// called with the context handed to fn take part in that transaction.
// Nested calls join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	// GetForUpdate reads the user and locks it for the current transaction.
	GetForUpdate(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	// CountByRole counts users holding role. Inside a transaction the counted
	// rows are locked until commit.
	CountByRole(ctx context.Context, role string) (int, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
}

// CampaignRepository defines persistence operations for campaigns.
type CampaignRepository interface {
	Get(ctx context.Context, id string) (types.Campaign, error)
	// GetForUpdate reads the campaign and locks it for the current transaction.
	GetForUpdate(ctx context.Context, id string) (types.Campaign, error)
	Create(ctx context.Context, campaign types.Campaign) (types.Campaign, error)
	// Update persists every mutable column except the comment id list.
	Update(ctx context.Context, campaign types.Campaign) (types.Campaign, error)
	List(ctx context.Context, filter types.CampaignFilter) ([]types.Campaign, int, error)
	ListIDs(ctx context.Context) ([]string, error)
	AddComment(ctx context.Context, campaignID, commentID string) error
	RemoveComment(ctx context.Context, campaignID, commentID string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// DonationRepository defines persistence operations for the donation ledger.
type DonationRepository interface {
	Create(ctx context.Context, donation types.Donation) (types.Donation, error)
	SumByCampaign(ctx context.Context, campaignID string) (float64, error)
	TotalsByCampaign(ctx context.Context, campaignID string) (types.DonationTotals, error)
	TotalsByUser(ctx context.Context, userID string) (types.DonationTotals, error)
	Totals(ctx context.Context) (types.DonationTotals, error)
	// ListByCampaign returns the newest donations first. limit <= 0 returns all.
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]types.Donation, error)
	ListByUser(ctx context.Context, userID string) ([]types.Donation, error)
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Get(ctx context.Context, id string) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, id string) error
	ListByCampaign(ctx context.Context, campaignID string) ([]types.Comment, error)
}

// ContactRepository defines persistence operations for contact messages.
type ContactRepository interface {
	Get(ctx context.Context, id string) (types.Contact, error)
	GetForUpdate(ctx context.Context, id string) (types.Contact, error)
	Create(ctx context.Context, contact types.Contact) (types.Contact, error)
	Update(ctx context.Context, contact types.Contact) (types.Contact, error)
	// List returns matching messages newest first.
	List(ctx context.Context, filter types.ContactFilter) ([]types.Contact, int, error)
	ListByUser(ctx context.Context, userID string) ([]types.Contact, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// OTPStore keeps short-lived secrets keyed by identity.
type OTPStore interface {
	Save(ctx context.Context, key, value string, ttl time.Duration) error
	// Get reports false when the key is missing or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	// Incr bumps a counter that expires window after its first hit.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Notifier hands outbound notifications to the delivery pipeline.
type Notifier interface {
	Notify(ctx context.Context, notification types.Notification) error
}
