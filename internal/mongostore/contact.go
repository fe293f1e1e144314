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

type ContactRepository struct {
	col *mongo.Collection
}

func NewContactRepository(s *Store) *ContactRepository {
	return &ContactRepository{col: s.collection(contactsCollection)}
}

func (r *ContactRepository) Get(ctx context.Context, id string) (types.Contact, error) {
	var contact types.Contact
	err := decodeOne(r.col.FindOne(ctx, bson.M{"_id": id}), &contact)
	return contact, err
}

func (r *ContactRepository) GetForUpdate(ctx context.Context, id string) (types.Contact, error) {
	var contact types.Contact
	err := decodeOne(touch(ctx, r.col, bson.M{"_id": id}), &contact)
	return contact, err
}

func (r *ContactRepository) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	contact.UpdatedAt = contact.CreatedAt
	if _, err := r.col.InsertOne(ctx, contact); err != nil {
		return types.Contact{}, mapWriteError(err)
	}
	return contact, nil
}

func (r *ContactRepository) Update(ctx context.Context, contact types.Contact) (types.Contact, error) {
	contact.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateByID(ctx, contact.ID, bson.M{"$set": bson.M{
		"status":        contact.Status,
		"adminResponse": contact.AdminResponse,
		"respondedBy":   contact.RespondedBy,
		"respondedAt":   contact.RespondedAt,
		"updatedAt":     contact.UpdatedAt,
	}})
	if err != nil {
		return types.Contact{}, err
	}
	if res.MatchedCount == 0 {
		return types.Contact{}, store.ErrNotFound
	}
	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context, filter types.ContactFilter) ([]types.Contact, int, error) {
	match := bson.M{}
	if filter.Status != "" {
		match["status"] = filter.Status
	}
	if filter.UserID != "" {
		match["userId"] = filter.UserID
	}
	total, err := r.col.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(filter.Offset, filter.Limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, match, opts)
	if err != nil {
		return nil, 0, err
	}
	contacts, err := decodeAll[types.Contact](ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return contacts, int(total), nil
}

func (r *ContactRepository) ListByUser(ctx context.Context, userID string) ([]types.Contact, error) {
	opts := pageOptions(0, 0).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[types.Contact](ctx, cur)
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByField(ctx, r.col, "status")
}
