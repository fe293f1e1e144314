package services

import (
	"context"
	"fmt"

	"github.com/fundraiseer/apiserver/types"
)

// DashboardService aggregates figures for the user and admin dashboards.
type DashboardService struct {
	users     UserRepository
	campaigns *CampaignService
	donations *DonationService
	contacts  *ContactService
	campRepo  CampaignRepository
	donRepo   DonationRepository
}

func NewDashboardService(
	users UserRepository,
	campRepo CampaignRepository,
	donRepo DonationRepository,
	campaigns *CampaignService,
	donations *DonationService,
	contacts *ContactService,
) *DashboardService {
	return &DashboardService{
		users:     users,
		campaigns: campaigns,
		donations: donations,
		contacts:  contacts,
		campRepo:  campRepo,
		donRepo:   donRepo,
	}
}

// UserDashboard returns the signed in user's campaigns and donations.
func (s *DashboardService) UserDashboard(ctx context.Context, userID string) (types.UserDashboard, error) {
	campaigns, err := s.campaigns.ListByCreator(ctx, userID)
	if err != nil {
		return types.UserDashboard{}, err
	}
	donations, err := s.donations.History(ctx, userID)
	if err != nil {
		return types.UserDashboard{}, err
	}

	dash := types.UserDashboard{
		Campaigns:     campaigns,
		Donations:     donations,
		CampaignCount: len(campaigns),
		DonationCount: len(donations),
	}
	for _, d := range donations {
		dash.TotalDonated += d.Amount
	}
	for _, c := range campaigns {
		dash.TotalRaised += c.RaisedAmount
	}
	dash.TotalDonated = types.RoundCents(dash.TotalDonated)
	dash.TotalRaised = types.RoundCents(dash.TotalRaised)
	return dash, nil
}

// AdminStats summarizes the whole platform.
func (s *DashboardService) AdminStats(ctx context.Context) (types.DashboardStats, error) {
	var stats types.DashboardStats

	_, total, err := s.users.List(ctx, 0, 1)
	if err != nil {
		return stats, fmt.Errorf("count users: %w", err)
	}
	admins, err := s.users.CountByRole(ctx, types.RoleAdmin)
	if err != nil {
		return stats, fmt.Errorf("count admins: %w", err)
	}
	stats.Users.Total = total
	stats.Users.Admins = admins

	byStatus, err := s.campRepo.CountByStatus(ctx)
	if err != nil {
		return stats, fmt.Errorf("count campaigns: %w", err)
	}
	stats.Campaigns.Pending = byStatus[types.CampaignPending]
	stats.Campaigns.Approved = byStatus[types.CampaignApproved]
	stats.Campaigns.Rejected = byStatus[types.CampaignRejected]
	stats.Campaigns.Completed = byStatus[types.CampaignCompleted]
	stats.Campaigns.Total = stats.Campaigns.Pending + stats.Campaigns.Approved +
		stats.Campaigns.Rejected + stats.Campaigns.Completed

	totals, err := s.donRepo.Totals(ctx)
	if err != nil {
		return stats, fmt.Errorf("donation totals: %w", err)
	}
	stats.Donations.Count = totals.Count
	stats.Donations.Amount = totals.Sum

	contactStats, err := s.contacts.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Contacts.Total = contactStats.Total
	stats.Contacts.Unresolved = contactStats.Unread + contactStats.InProgress
	return stats, nil
}

// UsersWithStats lists users with their campaign and donation counters.
func (s *DashboardService) UsersWithStats(ctx context.Context, offset, limit int) ([]types.UserWithStats, int, error) {
	users, total, err := s.users.List(ctx, offset, clampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	items := make([]types.UserWithStats, 0, len(users))
	for _, u := range users {
		_, created, err := s.campRepo.List(ctx, types.CampaignFilter{CreatorID: u.ID, Limit: 1})
		if err != nil {
			return nil, 0, fmt.Errorf("count campaigns: %w", err)
		}
		donated, err := s.donRepo.TotalsByUser(ctx, u.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("donation totals: %w", err)
		}
		items = append(items, types.UserWithStats{
			User:             u,
			CampaignsCreated: created,
			DonationsMade:    donated.Count,
			TotalDonated:     donated.Sum,
		})
	}
	return items, total, nil
}
