package types

import "time"

// Comment is a user remark attached to a campaign.
type Comment struct {
	ID         string    `json:"id" db:"id" bson:"_id"`
	CampaignID string    `json:"campaignId" db:"campaign_id" bson:"campaignId"`
	UserID     string    `json:"userId" db:"user_id" bson:"userId"`
	Text       string    `json:"text" db:"text" bson:"text"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`
}

type CommentView struct {
	Comment
	Author *UserSummary `json:"author,omitempty"`
}
