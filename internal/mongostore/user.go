package mongostore

import (
	"context"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	s   *Store
	col *mongo.Collection
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{s: s, col: s.collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	var user types.User
	err := decodeOne(r.col.FindOne(ctx, bson.M{"_id": id}), &user)
	return user, err
}

func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (types.User, error) {
	var user types.User
	err := decodeOne(touch(ctx, r.col, bson.M{"_id": id}), &user)
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	err := decodeOne(r.col.FindOne(ctx, bson.M{"email": email}), &user)
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"email":                user.Email,
		"name":                 user.Name,
		"role":                 user.Role,
		"passwordHash":         user.PasswordHash,
		"requirePasswordReset": user.RequirePasswordReset,
		"avatarUrl":            user.AvatarURL,
		"updatedAt":            user.UpdatedAt,
	}})
	if err != nil {
		return types.User{}, mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

// CountByRole counts users holding role. Inside a transaction it also bumps a
// per-role lock document so concurrent role changes conflict and retry.
func (r *UserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	if mongo.SessionFromContext(ctx) != nil {
		_, err := r.s.collection(locksCollection).UpdateByID(ctx, "role:"+role,
			bson.M{"$inc": bson.M{"lockVersion": 1}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return 0, err
		}
	}
	count, err := r.col.CountDocuments(ctx, bson.M{"role": role})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := pageOptions(offset, limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	users, err := decodeAll[types.User](ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return users, int(total), nil
}
