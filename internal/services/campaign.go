package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
)

const (
	defaultPageLimit   = 10
	maxPageLimit       = 100
	minRejectionNote   = 10
	recentCampaignsMax = 5
)

var categoryImages = map[string][]string{
	"education": {
		"https://images.unsplash.com/photo-1503676260728-1c00da094a0b?w=800",
		"https://images.unsplash.com/photo-1509062522246-3755977927d7?w=800",
		"https://images.unsplash.com/photo-1524578271613-d550eacf6090?w=800",
	},
	"medical": {
		"https://images.unsplash.com/photo-1583324113626-70df0f4deaab?w=800",
		"https://images.unsplash.com/photo-1576091160550-2173dba999ef?w=800",
		"https://images.unsplash.com/photo-1579684385127-1ef15d508118?w=800",
	},
	"environment": {
		"https://images.unsplash.com/photo-1497436072909-60f360e1d4b1?w=800",
		"https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=800",
		"https://images.unsplash.com/photo-1472214103451-9374bd1c798e?w=800",
	},
	"technology": {
		"https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
		"https://images.unsplash.com/photo-1526374965328-7f61d4dc18c5?w=800",
		"https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=800",
	},
	"community": {
		"https://images.unsplash.com/photo-1511632765486-a01980e01a18?w=800",
		"https://images.unsplash.com/photo-1526958097901-5e6d742d3371?w=800",
		"https://images.unsplash.com/photo-1559660499-91e5a0cccd64?w=800",
	},
	"other": {
		"https://images.unsplash.com/photo-1507608616759-54f48f0af0ee?w=800",
		"https://images.unsplash.com/photo-1518199266791-5375a83190b7?w=800",
		"https://images.unsplash.com/photo-1510797215324-95aa89f43c33?w=800",
	},
}

// CampaignInput holds the fields a user submits to create a campaign.
type CampaignInput struct {
	Title               string
	Description         string
	Category            string
	GoalAmount          float64
	Deadline            time.Time
	FundUtilizationPlan string
	MediaURLs           []string
}

// PublicQuery filters the public campaign catalog.
type PublicQuery struct {
	Category     string
	Search       string
	Completed    bool
	NeedsFunding bool
	SortUrgency  bool
	Offset       int
	Limit        int
}

// CampaignService encapsulates campaign catalog and moderation use-cases.
type CampaignService struct {
	campaigns CampaignRepository
	users     UserRepository
	donations DonationRepository
	tx        Transactor
	now       func() time.Time
}

func NewCampaignService(campaigns CampaignRepository, users UserRepository, donations DonationRepository, tx Transactor) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		users:     users,
		donations: donations,
		tx:        tx,
		now:       time.Now,
	}
}

// Create validates in and stores a new campaign. Campaigns created by admins
// skip the moderation queue.
func (s *CampaignService) Create(ctx context.Context, creatorID string, in CampaignInput) (types.CampaignView, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return types.CampaignView{}, userLookupError(err)
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.FundUtilizationPlan = strings.TrimSpace(in.FundUtilizationPlan)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Title == "" || in.Description == "" || in.FundUtilizationPlan == "" || in.Category == "" || in.Deadline.IsZero() {
		return types.CampaignView{}, ErrMissingFields
	}
	if math.IsNaN(in.GoalAmount) || math.IsInf(in.GoalAmount, 0) || in.GoalAmount <= 0 {
		return types.CampaignView{}, ErrInvalidGoal
	}
	if !types.ValidCategory(in.Category) {
		return types.CampaignView{}, ErrInvalidCategory
	}
	if !in.Deadline.After(s.now()) {
		return types.CampaignView{}, ErrDeadlineInPast
	}

	status := types.CampaignPending
	if creator.IsAdmin() {
		status = types.CampaignApproved
	}

	media := make([]string, 0, len(in.MediaURLs)+1)
	for _, u := range in.MediaURLs {
		if u = strings.TrimSpace(u); u != "" {
			media = append(media, u)
		}
	}

	campaign, err := s.campaigns.Create(ctx, types.Campaign{
		Title:               in.Title,
		Description:         in.Description,
		Category:            in.Category,
		GoalAmount:          types.RoundCents(in.GoalAmount),
		Deadline:            in.Deadline.UTC(),
		Status:              status,
		CreatorID:           creator.ID,
		FundUtilizationPlan: in.FundUtilizationPlan,
		MediaURLs:           media,
		CommentIDs:          []string{},
	})
	if err != nil {
		return types.CampaignView{}, fmt.Errorf("create campaign: %w", err)
	}

	logger.FromContext(ctx).WithField("campaign", campaign.ID).WithField("status", status).Info("campaign created")
	return s.view(ctx, campaign, map[string]*types.UserSummary{}), nil
}

// Get returns a campaign. Campaigns that are not approved or completed are
// visible to their creator only.
func (s *CampaignService) Get(ctx context.Context, id, viewerID string) (types.CampaignView, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return types.CampaignView{}, campaignLookupError(err)
	}
	if !campaign.IsPublic() && (viewerID == "" || viewerID != campaign.CreatorID) {
		return types.CampaignView{}, ErrCampaignHidden
	}
	return s.view(ctx, campaign, map[string]*types.UserSummary{}), nil
}

// ListPublic lists approved campaigns, or completed ones when q.Completed is set.
func (s *CampaignService) ListPublic(ctx context.Context, q PublicQuery) ([]types.CampaignView, int, error) {
	filter := types.CampaignFilter{
		Statuses:    []string{types.CampaignApproved},
		Search:      strings.TrimSpace(q.Search),
		SortUrgency: q.SortUrgency,
		Offset:      q.Offset,
		Limit:       clampLimit(q.Limit),
	}
	if q.Completed {
		filter.Statuses = []string{types.CampaignCompleted}
	} else {
		filter.NeedsFunding = q.NeedsFunding
	}
	if category := strings.ToLower(strings.TrimSpace(q.Category)); category != "" && category != "all" {
		filter.Category = category
	}
	return s.list(ctx, filter)
}

// ListAdmin lists campaigns in any status with donor statistics.
func (s *CampaignService) ListAdmin(ctx context.Context, status, search string, offset, limit int) ([]types.CampaignWithStats, int, error) {
	filter := types.CampaignFilter{
		Search: strings.TrimSpace(search),
		Offset: offset,
		Limit:  clampLimit(limit),
	}
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" && status != "all" {
		filter.Statuses = []string{status}
	}

	views, total, err := s.list(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items := make([]types.CampaignWithStats, 0, len(views))
	for _, v := range views {
		totals, err := s.donations.TotalsByCampaign(ctx, v.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("campaign totals: %w", err)
		}
		item := types.CampaignWithStats{CampaignView: v, TotalDonors: totals.Donors}
		if totals.Count > 0 {
			item.AvgDonation = types.RoundCents(totals.Sum / float64(totals.Count))
		}
		items = append(items, item)
	}
	return items, total, nil
}

// ListPending returns the moderation queue, newest first by creation.
func (s *CampaignService) ListPending(ctx context.Context, offset, limit int) ([]types.CampaignView, int, error) {
	return s.list(ctx, types.CampaignFilter{
		Statuses: []string{types.CampaignPending},
		Offset:   offset,
		Limit:    clampLimit(limit),
	})
}

// ListRecent returns the most recently created campaigns in any status.
func (s *CampaignService) ListRecent(ctx context.Context) ([]types.CampaignView, error) {
	views, _, err := s.list(ctx, types.CampaignFilter{Limit: recentCampaignsMax})
	return views, err
}

// ListByCreator returns every campaign created by userID.
func (s *CampaignService) ListByCreator(ctx context.Context, userID string) ([]types.CampaignView, error) {
	views, _, err := s.list(ctx, types.CampaignFilter{CreatorID: userID})
	return views, err
}

// Moderate approves or rejects a pending campaign.
func (s *CampaignService) Moderate(ctx context.Context, campaignID, moderatorID, decision, note string) (types.CampaignView, error) {
	decision = strings.ToLower(strings.TrimSpace(decision))
	note = strings.TrimSpace(note)
	if decision != types.CampaignApproved && decision != types.CampaignRejected {
		return types.CampaignView{}, ErrInvalidDecision
	}
	if decision == types.CampaignRejected && len([]rune(note)) < minRejectionNote {
		return types.CampaignView{}, ErrModerationNoteRequired
	}

	var moderated types.Campaign
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		campaign, err := s.campaigns.GetForUpdate(ctx, campaignID)
		if err != nil {
			return campaignLookupError(err)
		}
		if campaign.Status != types.CampaignPending {
			return ErrInvalidModerationState
		}

		now := s.now().UTC()
		campaign.Status = decision
		campaign.ModerationNote = note
		campaign.ModeratedBy = moderatorID
		campaign.ModeratedAt = &now
		moderated, err = s.campaigns.Update(ctx, campaign)
		if err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.CampaignView{}, err
	}

	metrics.CampaignTransitions.WithLabelValues(types.CampaignPending, decision).Inc()
	logger.FromContext(ctx).WithField("campaign", campaignID).WithField("decision", decision).Info("campaign moderated")
	return s.view(ctx, moderated, map[string]*types.UserSummary{}), nil
}

// Stats returns the owner view of a campaign's donations.
func (s *CampaignService) Stats(ctx context.Context, campaignID, userID string) (types.CampaignStats, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return types.CampaignStats{}, campaignLookupError(err)
	}
	if campaign.CreatorID != userID {
		return types.CampaignStats{}, ErrNotCampaignOwner
	}

	totals, err := s.donations.TotalsByCampaign(ctx, campaignID)
	if err != nil {
		return types.CampaignStats{}, fmt.Errorf("campaign totals: %w", err)
	}
	recent, err := s.donations.ListByCampaign(ctx, campaignID, recentCampaignsMax)
	if err != nil {
		return types.CampaignStats{}, fmt.Errorf("recent donations: %w", err)
	}

	cache := map[string]*types.UserSummary{}
	stats := types.CampaignStats{
		Campaign:        s.view(ctx, campaign, cache),
		DonationCount:   totals.Count,
		DonorCount:      totals.Donors,
		TotalRaised:     totals.Sum,
		RecentDonations: make([]types.DonationView, 0, len(recent)),
	}
	if totals.Count > 0 {
		stats.AverageDonation = types.RoundCents(totals.Sum / float64(totals.Count))
	}
	for _, d := range recent {
		view := types.DonationView{Donation: d, CampaignTitle: campaign.Title}
		if donor := s.summary(ctx, d.UserID, cache); donor != nil {
			view.DonorName = donor.Name
		}
		stats.RecentDonations = append(stats.RecentDonations, view)
	}
	return stats, nil
}

func (s *CampaignService) list(ctx context.Context, filter types.CampaignFilter) ([]types.CampaignView, int, error) {
	campaigns, total, err := s.campaigns.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	cache := map[string]*types.UserSummary{}
	views := make([]types.CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, s.view(ctx, c, cache))
	}
	return views, total, nil
}

func (s *CampaignService) view(ctx context.Context, c types.Campaign, cache map[string]*types.UserSummary) types.CampaignView {
	if len(c.MediaURLs) == 0 {
		c.MediaURLs = []string{defaultCategoryImage(c.Category, c.ID)}
	}
	view := types.NewCampaignView(c, s.now())
	view.Creator = s.summary(ctx, c.CreatorID, cache)
	return view
}

func (s *CampaignService) summary(ctx context.Context, userID string, cache map[string]*types.UserSummary) *types.UserSummary {
	if summary, ok := cache[userID]; ok {
		return summary
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.FromContext(ctx).WithError(err).WithField("user", userID).Warn("failed to load user summary")
		}
		cache[userID] = nil
		return nil
	}
	summary := user.Summary()
	cache[userID] = &summary
	return &summary
}

// defaultCategoryImage picks a stock image for campaigns without media. The
// choice is stable per campaign.
func defaultCategoryImage(category, seed string) string {
	images, ok := categoryImages[category]
	if !ok {
		images = categoryImages["other"]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return images[h.Sum32()%uint32(len(images))]
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func campaignLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCampaignNotFound
	}
	return err
}
