package types

// DashboardStats summarizes platform activity for the admin dashboard.
type DashboardStats struct {
	Users struct {
		Total  int `json:"total"`
		Admins int `json:"admins"`
	} `json:"users"`
	Campaigns struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Approved  int `json:"approved"`
		Rejected  int `json:"rejected"`
		Completed int `json:"completed"`
	} `json:"campaigns"`
	Donations struct {
		Count  int     `json:"count"`
		Amount float64 `json:"amount"`
	} `json:"donations"`
	Contacts struct {
		Total      int `json:"total"`
		Unresolved int `json:"unresolved"`
	} `json:"contacts"`
}

// ContactStats counts contact messages per status.
type ContactStats struct {
	Total      int `json:"total"`
	Unread     int `json:"unread"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
}

// UserDashboard is the personal overview of a signed in user.
type UserDashboard struct {
	Campaigns     []CampaignView `json:"campaigns"`
	Donations     []DonationView `json:"donations"`
	TotalDonated  float64        `json:"totalDonated"`
	TotalRaised   float64        `json:"totalRaised"`
	CampaignCount int            `json:"campaignCount"`
	DonationCount int            `json:"donationCount"`
}

// CampaignStats is the owner view of a single campaign's donations.
type CampaignStats struct {
	Campaign        CampaignView   `json:"campaign"`
	DonationCount   int            `json:"donationCount"`
	DonorCount      int            `json:"donorCount"`
	TotalRaised     float64        `json:"totalRaised"`
	AverageDonation float64        `json:"averageDonation"`
	RecentDonations []DonationView `json:"recentDonations"`
}

// ReconcileReport describes one run of the raised-amount repair routine.
type ReconcileReport struct {
	Checked   int               `json:"checked"`
	Corrected int               `json:"corrected"`
	Completed int               `json:"completed"`
	Changes   []ReconcileChange `json:"changes"`
}

// ReconcileChange records a campaign whose cached totals were repaired.
type ReconcileChange struct {
	CampaignID     string  `json:"campaignId"`
	PreviousRaised float64 `json:"previousRaisedAmount"`
	RaisedAmount   float64 `json:"raisedAmount"`
	PreviousStatus string  `json:"previousStatus"`
	Status         string  `json:"status"`
}
