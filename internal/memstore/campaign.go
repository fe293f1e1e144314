package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

// CampaignRepository is the in-memory campaign collection.
type CampaignRepository struct {
	s *Store
}

func NewCampaignRepository(s *Store) *CampaignRepository {
	return &CampaignRepository{s: s}
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (types.Campaign, error) {
	defer r.s.lock(ctx)()
	campaign, ok := r.s.campaigns[id]
	if !ok {
		return types.Campaign{}, store.ErrNotFound
	}
	return cloneCampaign(campaign), nil
}

func (r *CampaignRepository) GetForUpdate(ctx context.Context, id string) (types.Campaign, error) {
	return r.Get(ctx, id)
}

func (r *CampaignRepository) Create(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	defer r.s.lock(ctx)()
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	if campaign.MediaURLs == nil {
		campaign.MediaURLs = []string{}
	}
	if campaign.CommentIDs == nil {
		campaign.CommentIDs = []string{}
	}
	r.s.campaigns[campaign.ID] = cloneCampaign(campaign)
	r.s.nextSeq(campaign.ID)
	return campaign, nil
}

func (r *CampaignRepository) Update(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	defer r.s.lock(ctx)()
	current, ok := r.s.campaigns[campaign.ID]
	if !ok {
		return types.Campaign{}, store.ErrNotFound
	}
	campaign.CommentIDs = current.CommentIDs
	campaign.CreatedAt = current.CreatedAt
	campaign.UpdatedAt = time.Now().UTC()
	r.s.campaigns[campaign.ID] = cloneCampaign(campaign)
	return cloneCampaign(campaign), nil
}

func (r *CampaignRepository) List(ctx context.Context, filter types.CampaignFilter) ([]types.Campaign, int, error) {
	defer r.s.lock(ctx)()
	search := strings.ToLower(filter.Search)
	var matched []types.Campaign
	for _, c := range r.s.campaigns {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, c.Status) {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}
		if filter.CreatorID != "" && c.CreatorID != filter.CreatorID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		if filter.NeedsFunding && c.RaisedAmount >= c.GoalAmount {
			continue
		}
		matched = append(matched, cloneCampaign(c))
	}

	now := time.Now()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.SortUrgency {
			ra, rb := remainingShare(a), remainingShare(b)
			if ra != rb {
				return ra > rb
			}
			da, db := a.Deadline.Sub(now), b.Deadline.Sub(now)
			if da != db {
				return da < db
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return r.s.order[a.ID] > r.s.order[b.ID]
	})
	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r *CampaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	defer r.s.lock(ctx)()
	ids := make([]string, 0, len(r.s.campaigns))
	for id := range r.s.campaigns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.s.order[ids[i]] < r.s.order[ids[j]] })
	return ids, nil
}

func (r *CampaignRepository) AddComment(ctx context.Context, campaignID, commentID string) error {
	defer r.s.lock(ctx)()
	campaign, ok := r.s.campaigns[campaignID]
	if !ok {
		return store.ErrNotFound
	}
	campaign.CommentIDs = append(append([]string(nil), campaign.CommentIDs...), commentID)
	r.s.campaigns[campaignID] = campaign
	return nil
}

func (r *CampaignRepository) RemoveComment(ctx context.Context, campaignID, commentID string) error {
	defer r.s.lock(ctx)()
	campaign, ok := r.s.campaigns[campaignID]
	if !ok {
		return store.ErrNotFound
	}
	kept := make([]string, 0, len(campaign.CommentIDs))
	for _, id := range campaign.CommentIDs {
		if id != commentID {
			kept = append(kept, id)
		}
	}
	campaign.CommentIDs = kept
	r.s.campaigns[campaignID] = campaign
	return nil
}

func (r *CampaignRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	defer r.s.lock(ctx)()
	counts := map[string]int{}
	for _, c := range r.s.campaigns {
		counts[c.Status]++
	}
	return counts, nil
}

// SetRaisedAmount overwrites the cached total without touching the ledger.
// It exists to simulate drift in tests of the reconciliation routine.
func (r *CampaignRepository) SetRaisedAmount(ctx context.Context, id string, amount float64) error {
	defer r.s.lock(ctx)()
	campaign, ok := r.s.campaigns[id]
	if !ok {
		return store.ErrNotFound
	}
	campaign.RaisedAmount = amount
	r.s.campaigns[id] = campaign
	return nil
}

func remainingShare(c types.Campaign) float64 {
	if c.GoalAmount <= 0 {
		return 0
	}
	return (c.GoalAmount - c.RaisedAmount) / c.GoalAmount
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
