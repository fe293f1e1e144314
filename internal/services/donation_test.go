package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonateCompletesCampaignAtGoal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 100)

	receipt, err := f.donations.Donate(ctx, c.ID, donor.ID, 90)
	require.NoError(t, err)
	assert.Equal(t, 90.0, receipt.Campaign.RaisedAmount)
	assert.Equal(t, types.CampaignApproved, receipt.Campaign.Status)
	assert.False(t, receipt.Campaign.IsFunded)

	receipt, err = f.donations.Donate(ctx, c.ID, donor.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, receipt.Campaign.RaisedAmount)
	assert.Equal(t, types.CampaignCompleted, receipt.Campaign.Status)
	assert.True(t, receipt.Campaign.IsFunded)
	assert.Equal(t, 100.0, receipt.Campaign.Progress)

	_, err = f.donations.Donate(ctx, c.ID, donor.ID, 5)
	assert.ErrorIs(t, err, ErrCampaignNotAcceptingDonations)

	n, ok := f.notifier.last(types.NotificationDonationReceived)
	require.True(t, ok)
	assert.Equal(t, donor.Email, n.To)
	assert.Equal(t, "10.00", n.Data["amount"])
}

func TestDonateOverfundingCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 50)

	receipt, err := f.donations.Donate(ctx, c.ID, donor.ID, 75.5)
	require.NoError(t, err)
	assert.Equal(t, 75.5, receipt.Campaign.RaisedAmount)
	assert.Equal(t, types.CampaignCompleted, receipt.Campaign.Status)
	assert.Equal(t, 0.0, receipt.Campaign.RemainingAmount)
}

func TestDonateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	approved := f.campaign(t, owner.ID, types.CampaignApproved, 100)
	pending := f.campaign(t, owner.ID, types.CampaignPending, 100)
	rejected := f.campaign(t, owner.ID, types.CampaignRejected, 100)

	tests := []struct {
		name       string
		campaignID string
		userID     string
		amount     float64
		want       error
	}{
		{"zero amount", approved.ID, donor.ID, 0, ErrInvalidAmount},
		{"negative amount", approved.ID, donor.ID, -5, ErrInvalidAmount},
		{"not a number", approved.ID, donor.ID, math.NaN(), ErrInvalidAmount},
		{"rounds to zero", approved.ID, donor.ID, 0.001, ErrInvalidAmount},
		{"pending campaign", pending.ID, donor.ID, 10, ErrCampaignNotAcceptingDonations},
		{"rejected campaign", rejected.ID, donor.ID, 10, ErrCampaignNotAcceptingDonations},
		{"own campaign", approved.ID, owner.ID, 10, ErrSelfDonation},
		{"unknown campaign", "missing", donor.ID, 10, ErrCampaignNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.donations.Donate(ctx, tt.campaignID, tt.userID, tt.amount)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	sum, err := f.donRepo.SumByCampaign(ctx, approved.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestDonateAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 100)

	f.donations.now = func() time.Time { return c.Deadline.Add(time.Minute) }
	_, err := f.donations.Donate(ctx, c.ID, donor.ID, 10)
	assert.ErrorIs(t, err, ErrCampaignExpired)
}

func TestConcurrentDonationsKeepLedgerConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 1000)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.donations.Donate(ctx, c.ID, donor.ID, 4)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := f.donRepo.SumByCampaign(ctx, c.ID)
	require.NoError(t, err)
	stored, err := f.campRepo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sum)
	assert.Equal(t, sum, stored.RaisedAmount)
}

func TestReconcileRepairsDriftAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	drifted := f.campaign(t, owner.ID, types.CampaignApproved, 100)
	clean := f.campaign(t, owner.ID, types.CampaignApproved, 100)

	_, err := f.donRepo.Create(ctx, types.Donation{CampaignID: drifted.ID, UserID: donor.ID, Amount: 60})
	require.NoError(t, err)
	_, err = f.donRepo.Create(ctx, types.Donation{CampaignID: drifted.ID, UserID: donor.ID, Amount: 40})
	require.NoError(t, err)

	report, err := f.donations.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, report.Completed)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, drifted.ID, report.Changes[0].CampaignID)
	assert.Equal(t, 0.0, report.Changes[0].PreviousRaised)
	assert.Equal(t, 100.0, report.Changes[0].RaisedAmount)

	stored, err := f.campRepo.Get(ctx, drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CampaignCompleted, stored.Status)

	untouched, err := f.campRepo.Get(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CampaignApproved, untouched.Status)

	again, err := f.donations.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Checked)
	assert.Zero(t, again.Corrected)
	assert.Empty(t, again.Changes)
}

func TestReconcileNeverRegressesCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 100)

	_, err := f.donations.Donate(ctx, c.ID, donor.ID, 100)
	require.NoError(t, err)
	require.NoError(t, f.campRepo.SetRaisedAmount(ctx, c.ID, 250))

	change, err := f.donations.ReconcileCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, 250.0, change.PreviousRaised)
	assert.Equal(t, 100.0, change.RaisedAmount)
	assert.Equal(t, types.CampaignCompleted, change.Status)

	stored, err := f.campRepo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.RaisedAmount)
	assert.Equal(t, types.CampaignCompleted, stored.Status)

	change, err = f.donations.ReconcileCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, change)
}

func TestDonationHistoryCarriesCampaignTitles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 100)

	_, err := f.donations.Donate(ctx, c.ID, donor.ID, 15)
	require.NoError(t, err)
	_, err = f.donations.Donate(ctx, c.ID, donor.ID, 25)
	require.NoError(t, err)

	history, err := f.donations.History(ctx, donor.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 25.0, history[0].Amount)
	assert.Equal(t, c.Title, history[0].CampaignTitle)

	dash, err := f.dashboard.UserDashboard(ctx, donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, dash.TotalDonated)
	assert.Equal(t, 2, dash.DonationCount)

	ownerDash, err := f.dashboard.UserDashboard(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, ownerDash.TotalRaised)
	assert.Equal(t, 1, ownerDash.CampaignCount)
}
