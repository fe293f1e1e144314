package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository is the in-memory user collection.
type UserRepository struct {
	s *Store
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	defer r.s.lock(ctx)()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (types.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	defer r.s.lock(ctx)()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	r.s.nextSeq(user.ID)
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	defer r.s.lock(ctx)()
	current, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	defer r.s.lock(ctx)()
	count := 0
	for _, user := range r.s.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	defer r.s.lock(ctx)()
	users := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return r.s.order[users[i].ID] > r.s.order[users[j].ID]
	})
	return paginate(users, offset, limit), len(users), nil
}
