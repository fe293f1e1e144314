package mongostore

import (
	"context"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CommentRepository struct {
	col *mongo.Collection
}

func NewCommentRepository(s *Store) *CommentRepository {
	return &CommentRepository{col: s.collection(commentsCollection)}
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	var comment types.Comment
	err := decodeOne(r.col.FindOne(ctx, bson.M{"_id": id}), &comment)
	return comment, err
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, comment); err != nil {
		return types.Comment{}, mapWriteError(err)
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *CommentRepository) ListByCampaign(ctx context.Context, campaignID string) ([]types.Comment, error) {
	opts := pageOptions(0, 0).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"campaignId": campaignID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Comment](ctx, cur)
}
