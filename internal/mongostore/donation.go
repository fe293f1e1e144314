package mongostore

import (
	"context"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type DonationRepository struct {
	col *mongo.Collection
}

func NewDonationRepository(s *Store) *DonationRepository {
	return &DonationRepository{col: s.collection(donationsCollection)}
}

func (r *DonationRepository) Create(ctx context.Context, donation types.Donation) (types.Donation, error) {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, donation); err != nil {
		return types.Donation{}, mapWriteError(err)
	}
	return donation, nil
}

func (r *DonationRepository) SumByCampaign(ctx context.Context, campaignID string) (float64, error) {
	totals, err := r.totals(ctx, bson.M{"campaignId": campaignID})
	return totals.Sum, err
}

func (r *DonationRepository) TotalsByCampaign(ctx context.Context, campaignID string) (types.DonationTotals, error) {
	return r.totals(ctx, bson.M{"campaignId": campaignID})
}

func (r *DonationRepository) TotalsByUser(ctx context.Context, userID string) (types.DonationTotals, error) {
	return r.totals(ctx, bson.M{"userId": userID})
}

func (r *DonationRepository) Totals(ctx context.Context) (types.DonationTotals, error) {
	return r.totals(ctx, bson.M{})
}

func (r *DonationRepository) totals(ctx context.Context, match bson.M) (types.DonationTotals, error) {
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"count":  bson.M{"$sum": 1},
			"sum":    bson.M{"$sum": "$amount"},
			"donors": bson.M{"$addToSet": "$userId"},
		}}},
		{{Key: "$project", Value: bson.M{"count": 1, "sum": 1, "donors": bson.M{"$size": "$donors"}}}},
	})
	if err != nil {
		return types.DonationTotals{}, err
	}
	defer cur.Close(ctx)

	var totals types.DonationTotals
	if cur.Next(ctx) {
		var row struct {
			Count  int     `bson:"count"`
			Sum    float64 `bson:"sum"`
			Donors int     `bson:"donors"`
		}
		if err := cur.Decode(&row); err != nil {
			return types.DonationTotals{}, err
		}
		totals = types.DonationTotals{Count: row.Count, Donors: row.Donors, Sum: types.RoundCents(row.Sum)}
	}
	return totals, cur.Err()
}

func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]types.Donation, error) {
	return r.newest(ctx, bson.M{"campaignId": campaignID}, limit)
}

func (r *DonationRepository) ListByUser(ctx context.Context, userID string) ([]types.Donation, error) {
	return r.newest(ctx, bson.M{"userId": userID}, 0)
}

func (r *DonationRepository) newest(ctx context.Context, filter bson.M, limit int) ([]types.Donation, error) {
	opts := pageOptions(0, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Donation](ctx, cur)
}
