package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

type CommentRepository struct {
	s *Store
}

func NewCommentRepository(s *Store) *CommentRepository {
	return &CommentRepository{s: s}
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	defer r.s.lock(ctx)()
	comment, ok := r.s.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	defer r.s.lock(ctx)()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	r.s.comments[comment.ID] = comment
	r.s.nextSeq(comment.ID)
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}

func (r *CommentRepository) ListByCampaign(ctx context.Context, campaignID string) ([]types.Comment, error) {
	defer r.s.lock(ctx)()
	out := []types.Comment{}
	for _, c := range r.s.comments {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.order[out[i].ID] > r.s.order[out[j].ID]
	})
	return out, nil
}
