package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

// DonationRepository handles persistence for the donation ledger. Rows are
// only ever inserted.
type DonationRepository struct {
	db *sql.DB
}

func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, donation types.Donation) (types.Donation, error) {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO donations (id, campaign_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		donation.ID,
		donation.CampaignID,
		donation.UserID,
		donation.Amount,
		donation.CreatedAt,
	); err != nil {
		return types.Donation{}, mapWriteError(err)
	}
	return donation, nil
}

func (r *DonationRepository) SumByCampaign(ctx context.Context, campaignID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = $1`
	var sum float64
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, campaignID).Scan(&sum); err != nil {
		return 0, err
	}
	return types.RoundCents(sum), nil
}

func (r *DonationRepository) TotalsByCampaign(ctx context.Context, campaignID string) (types.DonationTotals, error) {
	return r.totals(ctx, ` WHERE campaign_id = $1`, campaignID)
}

func (r *DonationRepository) TotalsByUser(ctx context.Context, userID string) (types.DonationTotals, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return types.DonationTotals{}, nil
	}
	return r.totals(ctx, ` WHERE user_id = $1`, userID)
}

func (r *DonationRepository) Totals(ctx context.Context) (types.DonationTotals, error) {
	return r.totals(ctx, ``)
}

func (r *DonationRepository) totals(ctx context.Context, where string, args ...any) (types.DonationTotals, error) {
	query := `SELECT COUNT(1), COUNT(DISTINCT user_id), COALESCE(SUM(amount), 0) FROM donations` + where
	var totals types.DonationTotals
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&totals.Count, &totals.Donors, &totals.Sum); err != nil {
		return types.DonationTotals{}, err
	}
	totals.Sum = types.RoundCents(totals.Sum)
	return totals, nil
}

func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]types.Donation, error) {
	const query = `
		SELECT id, campaign_id, user_id, amount, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return r.list(ctx, query, campaignID, sqlLimit(limit))
}

func (r *DonationRepository) ListByUser(ctx context.Context, userID string) ([]types.Donation, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []types.Donation{}, nil
	}
	const query = `
		SELECT id, campaign_id, user_id, amount, created_at
		FROM donations
		WHERE user_id = $1
		ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *DonationRepository) list(ctx context.Context, query string, args ...any) ([]types.Donation, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := make([]types.Donation, 0)
	for rows.Next() {
		var d types.Donation
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.UserID, &d.Amount, &d.CreatedAt); err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}
