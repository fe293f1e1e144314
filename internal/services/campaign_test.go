package services

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CampaignInput {
	return CampaignInput{
		Title:               "School library",
		Description:         "Books for the rural school",
		Category:            "Education",
		GoalAmount:          500,
		Deadline:            time.Now().Add(14 * 24 * time.Hour),
		FundUtilizationPlan: "Shelves and books",
	}
}

func TestCreateCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := f.user(t, "member@example.com", types.RoleUser)
	admin := f.user(t, "admin@example.com", types.RoleAdmin)

	view, err := f.campaigns.Create(ctx, member.ID, validInput())
	require.NoError(t, err)
	assert.Equal(t, types.CampaignPending, view.Status)
	assert.Equal(t, "education", view.Category)
	assert.Zero(t, view.RaisedAmount)
	require.Len(t, view.MediaURLs, 1, "a default category image is attached")
	assert.Contains(t, categoryImages["education"], view.MediaURLs[0])
	require.NotNil(t, view.Creator)
	assert.Equal(t, member.ID, view.Creator.ID)
	assert.Equal(t, 14, view.DaysLeft)

	adminView, err := f.campaigns.Create(ctx, admin.ID, validInput())
	require.NoError(t, err)
	assert.Equal(t, types.CampaignApproved, adminView.Status)
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := f.user(t, "member@example.com", types.RoleUser)

	tests := []struct {
		name   string
		modify func(in *CampaignInput)
		want   error
	}{
		{"missing title", func(in *CampaignInput) { in.Title = " " }, ErrMissingFields},
		{"missing plan", func(in *CampaignInput) { in.FundUtilizationPlan = "" }, ErrMissingFields},
		{"zero goal", func(in *CampaignInput) { in.GoalAmount = 0 }, ErrInvalidGoal},
		{"unknown category", func(in *CampaignInput) { in.Category = "pets" }, ErrInvalidCategory},
		{"past deadline", func(in *CampaignInput) { in.Deadline = time.Now().Add(-time.Hour) }, ErrDeadlineInPast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.modify(&in)
			_, err := f.campaigns.Create(ctx, member.ID, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.campaigns.Create(ctx, "missing", validInput())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCampaignVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	other := f.user(t, "other@example.com", types.RoleUser)

	pending, err := f.campaigns.Create(ctx, owner.ID, validInput())
	require.NoError(t, err)

	_, err = f.campaigns.Get(ctx, pending.ID, other.ID)
	assert.ErrorIs(t, err, ErrCampaignHidden)
	_, err = f.campaigns.Get(ctx, pending.ID, "")
	assert.ErrorIs(t, err, ErrCampaignHidden)

	own, err := f.campaigns.Get(ctx, pending.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, own.ID)

	list, total, err := f.campaigns.ListPublic(ctx, PublicQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	_, err = f.campaigns.Get(ctx, "missing", owner.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestModerateCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	admin := f.user(t, "admin@example.com", types.RoleAdmin)

	first, err := f.campaigns.Create(ctx, owner.ID, validInput())
	require.NoError(t, err)
	second, err := f.campaigns.Create(ctx, owner.ID, validInput())
	require.NoError(t, err)

	_, err = f.campaigns.Moderate(ctx, first.ID, admin.ID, "maybe", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
	_, err = f.campaigns.Moderate(ctx, first.ID, admin.ID, types.CampaignRejected, "too short")
	assert.ErrorIs(t, err, ErrModerationNoteRequired)

	approved, err := f.campaigns.Moderate(ctx, first.ID, admin.ID, "Approved", "")
	require.NoError(t, err)
	assert.Equal(t, types.CampaignApproved, approved.Status)
	assert.Equal(t, admin.ID, approved.ModeratedBy)
	require.NotNil(t, approved.ModeratedAt)

	_, err = f.campaigns.Moderate(ctx, first.ID, admin.ID, types.CampaignRejected, "changed our minds here")
	assert.ErrorIs(t, err, ErrInvalidModerationState)

	rejected, err := f.campaigns.Moderate(ctx, second.ID, admin.ID, types.CampaignRejected, "Missing supporting documents")
	require.NoError(t, err)
	assert.Equal(t, "Missing supporting documents", rejected.ModerationNote)

	pending, total, err := f.campaigns.ListPending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)

	public, total, err := f.campaigns.ListPublic(ctx, PublicQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first.ID, public[0].ID)
}

func TestListPublicFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)

	water := f.campaign(t, owner.ID, types.CampaignApproved, 100)
	done := f.campaign(t, owner.ID, types.CampaignCompleted, 100)
	require.NoError(t, f.campRepo.SetRaisedAmount(ctx, done.ID, 100))

	in := validInput()
	in.Title = "Solar panels"
	in.Category = "technology"
	solar, err := f.campaigns.Create(ctx, owner.ID, in)
	require.NoError(t, err)
	admin := f.user(t, "admin@example.com", types.RoleAdmin)
	_, err = f.campaigns.Moderate(ctx, solar.ID, admin.ID, types.CampaignApproved, "")
	require.NoError(t, err)
	require.NoError(t, f.campRepo.SetRaisedAmount(ctx, solar.ID, 400))

	list, total, err := f.campaigns.ListPublic(ctx, PublicQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	list, _, err = f.campaigns.ListPublic(ctx, PublicQuery{Category: "Technology"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, solar.ID, list[0].ID)

	list, _, err = f.campaigns.ListPublic(ctx, PublicQuery{Search: "WATER"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, water.ID, list[0].ID)

	list, _, err = f.campaigns.ListPublic(ctx, PublicQuery{Completed: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)

	list, _, err = f.campaigns.ListPublic(ctx, PublicQuery{SortUrgency: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, water.ID, list[0].ID, "the least funded campaign sorts first")

	list, _, err = f.campaigns.ListPublic(ctx, PublicQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdminListAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	other := f.user(t, "other@example.com", types.RoleUser)
	donor := f.user(t, "donor@example.com", types.RoleUser)
	c := f.campaign(t, owner.ID, types.CampaignApproved, 100)
	f.campaign(t, owner.ID, types.CampaignPending, 100)

	_, err := f.donations.Donate(ctx, c.ID, donor.ID, 20)
	require.NoError(t, err)
	_, err = f.donations.Donate(ctx, c.ID, other.ID, 40)
	require.NoError(t, err)

	items, total, err := f.campaigns.ListAdmin(ctx, "approved", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].TotalDonors)
	assert.Equal(t, 30.0, items[0].AvgDonation)

	_, total, err = f.campaigns.ListAdmin(ctx, "all", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	stats, err := f.campaigns.Stats(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DonationCount)
	assert.Equal(t, 60.0, stats.TotalRaised)
	require.Len(t, stats.RecentDonations, 2)
	assert.Equal(t, other.Name, stats.RecentDonations[0].DonorName)

	_, err = f.campaigns.Stats(ctx, c.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotCampaignOwner)

	recent, err := f.campaigns.ListRecent(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestDefaultCategoryImageIsStable(t *testing.T) {
	a := defaultCategoryImage("medical", "campaign-1")
	assert.Equal(t, a, defaultCategoryImage("medical", "campaign-1"))
	assert.Contains(t, categoryImages["medical"], a)
	assert.True(t, strings.HasPrefix(defaultCategoryImage("unknown", "x"), "https://"))
	assert.Contains(t, categoryImages["other"], defaultCategoryImage("unknown", "x"))

	for i := 0; i < 500; i++ {
		assert.Contains(t, categoryImages["education"], defaultCategoryImage("education", "seed-"+strconv.Itoa(i)))
	}
}

func TestListPendingNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", types.RoleUser)
	older := f.campaign(t, owner.ID, types.CampaignPending, 100)
	newer := f.campaign(t, owner.ID, types.CampaignPending, 100)

	pending, total, err := f.campaigns.ListPending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, pending, 2)
	assert.Equal(t, newer.ID, pending[0].ID)
	assert.Equal(t, older.ID, pending[1].ID)
}
