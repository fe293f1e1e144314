package mongostore

import (
	"context"
	"regexp"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CampaignRepository struct {
	col *mongo.Collection
}

func NewCampaignRepository(s *Store) *CampaignRepository {
	return &CampaignRepository{col: s.collection(campaignsCollection)}
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (types.Campaign, error) {
	var campaign types.Campaign
	err := decodeOne(r.col.FindOne(ctx, bson.M{"_id": id}), &campaign)
	return normalizeCampaign(campaign), err
}

func (r *CampaignRepository) GetForUpdate(ctx context.Context, id string) (types.Campaign, error) {
	var campaign types.Campaign
	err := decodeOne(touch(ctx, r.col, bson.M{"_id": id}), &campaign)
	return normalizeCampaign(campaign), err
}

func (r *CampaignRepository) Create(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	campaign = normalizeCampaign(campaign)
	if _, err := r.col.InsertOne(ctx, campaign); err != nil {
		return types.Campaign{}, mapWriteError(err)
	}
	return campaign, nil
}

func (r *CampaignRepository) Update(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	campaign.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"title":               campaign.Title,
		"description":         campaign.Description,
		"category":            campaign.Category,
		"goalAmount":          campaign.GoalAmount,
		"raisedAmount":        campaign.RaisedAmount,
		"deadline":            campaign.Deadline,
		"status":              campaign.Status,
		"fundUtilizationPlan": campaign.FundUtilizationPlan,
		"mediaUrls":           campaign.MediaURLs,
		"moderationNote":      campaign.ModerationNote,
		"moderatedBy":         campaign.ModeratedBy,
		"moderatedAt":         campaign.ModeratedAt,
		"updatedAt":           campaign.UpdatedAt,
	}
	var stored types.Campaign
	if err := decodeOne(r.col.FindOneAndUpdate(ctx, bson.M{"_id": campaign.ID}, bson.M{"$set": set}), &stored); err != nil {
		return types.Campaign{}, err
	}
	campaign.CommentIDs = stored.CommentIDs
	campaign.CreatedAt = stored.CreatedAt
	return normalizeCampaign(campaign), nil
}

func (r *CampaignRepository) List(ctx context.Context, filter types.CampaignFilter) ([]types.Campaign, int, error) {
	match := bson.M{}
	if len(filter.Statuses) > 0 {
		match["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.Category != "" {
		match["category"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Category) + "$", "$options": "i"}
	}
	if filter.CreatorID != "" {
		match["creatorId"] = filter.CreatorID
	}
	if filter.Search != "" {
		match["title"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	if filter.NeedsFunding {
		match["$expr"] = bson.M{"$lt": bson.A{"$raisedAmount", "$goalAmount"}}
	}

	total, err := r.col.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	if filter.SortUrgency {
		pipeline = append(pipeline,
			bson.D{{Key: "$addFields", Value: bson.M{"urgency": bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{"$goalAmount", "$raisedAmount"}}, "$goalAmount",
			}}}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "urgency", Value: -1}, {Key: "deadline", Value: 1}, {Key: "createdAt", Value: -1}}}},
		)
	} else {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}})
	}
	if filter.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: filter.Offset}})
	}
	if filter.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: filter.Limit}})
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	campaigns, err := decodeAll[types.Campaign](ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	for i := range campaigns {
		campaigns[i] = normalizeCampaign(campaigns[i])
	}
	return campaigns, int(total), nil
}

func (r *CampaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	cur, err := r.col.Find(ctx, bson.M{}, pageOptions(0, 0).
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	rows, err := decodeAll[struct {
		ID string `bson:"_id"`
	}](ctx, cur)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *CampaignRepository) AddComment(ctx context.Context, campaignID, commentID string) error {
	return r.updateOne(ctx, campaignID, bson.M{
		"$push": bson.M{"commentIds": commentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *CampaignRepository) RemoveComment(ctx context.Context, campaignID, commentID string) error {
	return r.updateOne(ctx, campaignID, bson.M{
		"$pull": bson.M{"commentIds": commentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *CampaignRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByField(ctx, r.col, "status")
}

func (r *CampaignRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func normalizeCampaign(c types.Campaign) types.Campaign {
	if c.MediaURLs == nil {
		c.MediaURLs = []string{}
	}
	if c.CommentIDs == nil {
		c.CommentIDs = []string{}
	}
	return c
}
