package types

import "time"

// Donation is an immutable ledger entry recording a contribution to a campaign.
type Donation struct {
	ID         string    `json:"id" db:"id" bson:"_id"`
	CampaignID string    `json:"campaignId" db:"campaign_id" bson:"campaignId"`
	UserID     string    `json:"userId" db:"user_id" bson:"userId"`
	Amount     float64   `json:"amount" db:"amount" bson:"amount"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`
}

// DonationView adds the campaign title to a donation for history listings.
type DonationView struct {
	Donation
	CampaignTitle string `json:"campaignTitle,omitempty"`
	DonorName     string `json:"donorName,omitempty"`
}

// DonationTotals aggregates the donations of one campaign.
type DonationTotals struct {
	Count  int     `json:"count"`
	Donors int     `json:"donors"`
	Sum    float64 `json:"sum"`
}
