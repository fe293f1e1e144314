package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

// DonationRepository is the in-memory donation ledger.
type DonationRepository struct {
	s *Store
}

func NewDonationRepository(s *Store) *DonationRepository {
	return &DonationRepository{s: s}
}

func (r *DonationRepository) Create(ctx context.Context, donation types.Donation) (types.Donation, error) {
	defer r.s.lock(ctx)()
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now().UTC()
	}
	r.s.donations[donation.ID] = donation
	r.s.nextSeq(donation.ID)
	return donation, nil
}

func (r *DonationRepository) SumByCampaign(ctx context.Context, campaignID string) (float64, error) {
	totals, err := r.TotalsByCampaign(ctx, campaignID)
	return totals.Sum, err
}

func (r *DonationRepository) TotalsByCampaign(ctx context.Context, campaignID string) (types.DonationTotals, error) {
	defer r.s.lock(ctx)()
	return r.totals(func(d types.Donation) bool { return d.CampaignID == campaignID }), nil
}

func (r *DonationRepository) TotalsByUser(ctx context.Context, userID string) (types.DonationTotals, error) {
	defer r.s.lock(ctx)()
	return r.totals(func(d types.Donation) bool { return d.UserID == userID }), nil
}

func (r *DonationRepository) Totals(ctx context.Context) (types.DonationTotals, error) {
	defer r.s.lock(ctx)()
	return r.totals(func(types.Donation) bool { return true }), nil
}

func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]types.Donation, error) {
	defer r.s.lock(ctx)()
	return paginate(r.newest(func(d types.Donation) bool { return d.CampaignID == campaignID }), 0, limit), nil
}

func (r *DonationRepository) ListByUser(ctx context.Context, userID string) ([]types.Donation, error) {
	defer r.s.lock(ctx)()
	return r.newest(func(d types.Donation) bool { return d.UserID == userID }), nil
}

func (r *DonationRepository) totals(match func(types.Donation) bool) types.DonationTotals {
	var totals types.DonationTotals
	donors := map[string]struct{}{}
	for _, d := range r.s.donations {
		if !match(d) {
			continue
		}
		totals.Count++
		totals.Sum += d.Amount
		donors[d.UserID] = struct{}{}
	}
	totals.Donors = len(donors)
	totals.Sum = types.RoundCents(totals.Sum)
	return totals
}

func (r *DonationRepository) newest(match func(types.Donation) bool) []types.Donation {
	var out []types.Donation
	for _, d := range r.s.donations {
		if match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.order[out[i].ID] > r.s.order[out[j].ID]
	})
	return out
}
