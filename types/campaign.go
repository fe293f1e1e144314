package types

import (
	"math"
	"time"
)

const (
	CampaignPending   = "pending"
	CampaignApproved  = "approved"
	CampaignRejected  = "rejected"
	CampaignCompleted = "completed"
)

// Categories lists the accepted campaign categories.
var Categories = []string{"education", "medical", "environment", "technology", "community", "other"}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Campaign represents a fundraising project with a goal and a deadline.
type Campaign struct {
	// ID is the unique identifier of the campaign.
	ID string `json:"id" db:"id" bson:"_id"`

	// Title is the short human readable name of the campaign.
	Title string `json:"title" db:"title" bson:"title"`

	// Description is the full campaign pitch.
	Description string `json:"description" db:"description" bson:"description"`

	// Category is one of Categories.
	Category string `json:"category" db:"category" bson:"category"`

	// GoalAmount is the target amount. Always greater than zero.
	GoalAmount float64 `json:"goalAmount" db:"goal_amount" bson:"goalAmount"`

	// RaisedAmount caches the sum of all donations made to the campaign.
	// It is recomputed from the donation ledger, never incremented.
	RaisedAmount float64 `json:"raisedAmount" db:"raised_amount" bson:"raisedAmount"`

	// Deadline is the time after which donations are no longer accepted.
	Deadline time.Time `json:"deadline" db:"deadline" bson:"deadline"`

	// Status is one of pending, approved, rejected or completed.
	Status string `json:"status" db:"status" bson:"status"`

	// CreatorID references the owning user.
	CreatorID string `json:"creatorId" db:"creator_id" bson:"creatorId"`

	// FundUtilizationPlan explains how the raised funds will be spent.
	FundUtilizationPlan string `json:"fundUtilizationPlan" db:"fund_utilization_plan" bson:"fundUtilizationPlan"`

	// MediaURLs lists images attached to the campaign.
	MediaURLs []string `json:"mediaUrls" db:"media_urls" bson:"mediaUrls"`

	// CommentIDs is the embedded list of comment identifiers.
	CommentIDs []string `json:"commentIds" db:"comment_ids" bson:"commentIds"`

	// ModerationNote is the note left by the moderating admin.
	ModerationNote string `json:"moderationNote,omitempty" db:"moderation_note" bson:"moderationNote,omitempty"`

	// ModeratedBy references the admin who moderated the campaign.
	ModeratedBy string `json:"moderatedBy,omitempty" db:"moderated_by" bson:"moderatedBy,omitempty"`

	// ModeratedAt is set when the campaign leaves the pending state by moderation.
	ModeratedAt *time.Time `json:"moderatedAt,omitempty" db:"moderated_at" bson:"moderatedAt,omitempty"`

	// CreatedAt is the timestamp when the campaign was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the campaign.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// IsPublic reports whether anyone may view the campaign.
func (c Campaign) IsPublic() bool {
	return c.Status == CampaignApproved || c.Status == CampaignCompleted
}

// CampaignView is the read model returned by the API: the stored campaign
// plus derived funding figures and the creator projection.
type CampaignView struct {
	Campaign
	Creator         *UserSummary `json:"creator,omitempty"`
	Progress        float64      `json:"progress"`
	IsFunded        bool         `json:"isFunded"`
	RemainingAmount float64      `json:"remainingAmount"`
	DaysLeft        int          `json:"daysLeft"`
}

// NewCampaignView derives the funding figures of c relative to now.
func NewCampaignView(c Campaign, now time.Time) CampaignView {
	view := CampaignView{Campaign: c}
	if c.GoalAmount > 0 {
		view.Progress = math.Min(c.RaisedAmount/c.GoalAmount*100, 100)
	}
	view.IsFunded = c.RaisedAmount >= c.GoalAmount
	view.RemainingAmount = math.Max(RoundCents(c.GoalAmount-c.RaisedAmount), 0)
	days := math.Ceil(c.Deadline.Sub(now).Hours() / 24)
	view.DaysLeft = int(math.Max(days, 0))
	if view.MediaURLs == nil {
		view.MediaURLs = []string{}
	}
	if view.CommentIDs == nil {
		view.CommentIDs = []string{}
	}
	return view
}

// CampaignWithStats is a campaign enriched with donor statistics for admins.
type CampaignWithStats struct {
	CampaignView
	TotalDonors int     `json:"totalDonors"`
	AvgDonation float64 `json:"avgDonation"`
}

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	Statuses     []string
	Category     string
	Search       string
	CreatorID    string
	NeedsFunding bool
	SortUrgency  bool
	Offset       int
	Limit        int
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
