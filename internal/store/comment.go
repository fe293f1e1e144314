package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Comment{}, ErrNotFound
	}
	const query = `SELECT id, campaign_id, user_id, text, created_at FROM comments WHERE id = $1`
	var c types.Comment
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.CampaignID, &c.UserID, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return c, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, campaign_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query,
		comment.ID, comment.CampaignID, comment.UserID, comment.Text, comment.CreatedAt,
	); err != nil {
		return types.Comment{}, mapWriteError(err)
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CommentRepository) ListByCampaign(ctx context.Context, campaignID string) ([]types.Comment, error) {
	const query = `
		SELECT id, campaign_id, user_id, text, created_at
		FROM comments
		WHERE campaign_id = $1
		ORDER BY created_at DESC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
