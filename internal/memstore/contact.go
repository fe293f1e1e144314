package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

type ContactRepository struct {
	s *Store
}

func NewContactRepository(s *Store) *ContactRepository {
	return &ContactRepository{s: s}
}

func (r *ContactRepository) Get(ctx context.Context, id string) (types.Contact, error) {
	defer r.s.lock(ctx)()
	contact, ok := r.s.contacts[id]
	if !ok {
		return types.Contact{}, store.ErrNotFound
	}
	return contact, nil
}

func (r *ContactRepository) GetForUpdate(ctx context.Context, id string) (types.Contact, error) {
	return r.Get(ctx, id)
}

func (r *ContactRepository) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	defer r.s.lock(ctx)()
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	contact.UpdatedAt = contact.CreatedAt
	r.s.contacts[contact.ID] = contact
	r.s.nextSeq(contact.ID)
	return contact, nil
}

func (r *ContactRepository) Update(ctx context.Context, contact types.Contact) (types.Contact, error) {
	defer r.s.lock(ctx)()
	current, ok := r.s.contacts[contact.ID]
	if !ok {
		return types.Contact{}, store.ErrNotFound
	}
	contact.CreatedAt = current.CreatedAt
	contact.UpdatedAt = time.Now().UTC()
	r.s.contacts[contact.ID] = contact
	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context, filter types.ContactFilter) ([]types.Contact, int, error) {
	defer r.s.lock(ctx)()
	matched := r.newest(func(c types.Contact) bool {
		if filter.Status != "" && c.Status != filter.Status {
			return false
		}
		return filter.UserID == "" || c.UserID == filter.UserID
	})
	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (r *ContactRepository) ListByUser(ctx context.Context, userID string) ([]types.Contact, error) {
	defer r.s.lock(ctx)()
	return r.newest(func(c types.Contact) bool { return c.UserID == userID }), nil
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	defer r.s.lock(ctx)()
	counts := map[string]int{}
	for _, c := range r.s.contacts {
		counts[c.Status]++
	}
	return counts, nil
}

func (r *ContactRepository) newest(match func(types.Contact) bool) []types.Contact {
	out := []types.Contact{}
	for _, c := range r.s.contacts {
		if match(c) {
			out = append(out, c)
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
