package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const campaignColumns = `id, title, description, category, goal_amount, raised_amount, deadline, status, creator_id,
	fund_utilization_plan, media_urls, comment_ids, moderation_note, moderated_by, moderated_at, created_at, updated_at`

// CampaignRepository handles persistence for campaigns.
type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (types.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Campaign{}, ErrNotFound
	}
	const query = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the campaign row until the surrounding transaction ends.
func (r *CampaignRepository) GetForUpdate(ctx context.Context, id string) (types.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Campaign{}, ErrNotFound
	}
	const query = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
	return scanCampaign(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *CampaignRepository) Create(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	if campaign.MediaURLs == nil {
		campaign.MediaURLs = []string{}
	}
	if campaign.CommentIDs == nil {
		campaign.CommentIDs = []string{}
	}

	const query = `
		INSERT INTO campaigns (id, title, description, category, goal_amount, raised_amount, deadline, status, creator_id,
			fund_utilization_plan, media_urls, comment_ids, moderation_note, moderated_by, moderated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		campaign.ID,
		campaign.Title,
		campaign.Description,
		campaign.Category,
		campaign.GoalAmount,
		campaign.RaisedAmount,
		campaign.Deadline,
		campaign.Status,
		campaign.CreatorID,
		campaign.FundUtilizationPlan,
		pq.Array(campaign.MediaURLs),
		pq.Array(campaign.CommentIDs),
		campaign.ModerationNote,
		nullString(campaign.ModeratedBy),
		campaign.ModeratedAt,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	); err != nil {
		return types.Campaign{}, mapWriteError(err)
	}
	return campaign, nil
}

// Update writes every mutable column except comment_ids, which is owned by
// AddComment and RemoveComment.
func (r *CampaignRepository) Update(ctx context.Context, campaign types.Campaign) (types.Campaign, error) {
	campaign.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE campaigns
		SET title = $1,
			description = $2,
			category = $3,
			goal_amount = $4,
			raised_amount = $5,
			deadline = $6,
			status = $7,
			fund_utilization_plan = $8,
			media_urls = $9,
			moderation_note = $10,
			moderated_by = $11,
			moderated_at = $12,
			updated_at = $13
		WHERE id = $14
		RETURNING comment_ids`
	var commentIDs pq.StringArray
	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		campaign.Title,
		campaign.Description,
		campaign.Category,
		campaign.GoalAmount,
		campaign.RaisedAmount,
		campaign.Deadline,
		campaign.Status,
		campaign.FundUtilizationPlan,
		pq.Array(campaign.MediaURLs),
		campaign.ModerationNote,
		nullString(campaign.ModeratedBy),
		campaign.ModeratedAt,
		campaign.UpdatedAt,
		campaign.ID,
	).Scan(&commentIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Campaign{}, ErrNotFound
		}
		return types.Campaign{}, err
	}
	campaign.CommentIDs = []string(commentIDs)
	return campaign, nil
}

func (r *CampaignRepository) List(ctx context.Context, filter types.CampaignFilter) ([]types.Campaign, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.Array(filter.Statuses))+")")
	}
	if filter.Category != "" {
		where = append(where, "LOWER(category) = LOWER("+arg(filter.Category)+")")
	}
	if filter.CreatorID != "" {
		if _, err := uuid.Parse(filter.CreatorID); err != nil {
			return []types.Campaign{}, 0, nil
		}
		where = append(where, "creator_id = "+arg(filter.CreatorID))
	}
	if filter.Search != "" {
		where = append(where, "title ILIKE "+arg("%"+escapeLike(filter.Search)+"%"))
	}
	if filter.NeedsFunding {
		where = append(where, "raised_amount < goal_amount")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q := conn(ctx, r.db)
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM campaigns`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := " ORDER BY created_at DESC"
	if filter.SortUrgency {
		order = " ORDER BY (goal_amount - raised_amount) / goal_amount DESC, deadline ASC, created_at DESC"
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	listQuery := `SELECT ` + campaignColumns + ` FROM campaigns` + clause + order +
		` OFFSET ` + arg(offset) + ` LIMIT ` + arg(sqlLimit(filter.Limit))

	rows, err := q.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := make([]types.Campaign, 0)
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id FROM campaigns ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CampaignRepository) AddComment(ctx context.Context, campaignID, commentID string) error {
	const query = `UPDATE campaigns SET comment_ids = array_append(comment_ids, $1), updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, commentID, time.Now().UTC(), campaignID)
}

func (r *CampaignRepository) RemoveComment(ctx context.Context, campaignID, commentID string) error {
	const query = `UPDATE campaigns SET comment_ids = array_remove(comment_ids, $1), updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, commentID, time.Now().UTC(), campaignID)
}

func (r *CampaignRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT status, COUNT(1) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *CampaignRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
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

func scanCampaign(row rowScanner) (types.Campaign, error) {
	var (
		campaign    types.Campaign
		mediaURLs   pq.StringArray
		commentIDs  pq.StringArray
		moderatedBy sql.NullString
		moderatedAt sql.NullTime
	)
	err := row.Scan(
		&campaign.ID,
		&campaign.Title,
		&campaign.Description,
		&campaign.Category,
		&campaign.GoalAmount,
		&campaign.RaisedAmount,
		&campaign.Deadline,
		&campaign.Status,
		&campaign.CreatorID,
		&campaign.FundUtilizationPlan,
		&mediaURLs,
		&commentIDs,
		&campaign.ModerationNote,
		&moderatedBy,
		&moderatedAt,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Campaign{}, ErrNotFound
		}
		return types.Campaign{}, err
	}
	campaign.MediaURLs = []string(mediaURLs)
	campaign.CommentIDs = []string(commentIDs)
	if campaign.MediaURLs == nil {
		campaign.MediaURLs = []string{}
	}
	if campaign.CommentIDs == nil {
		campaign.CommentIDs = []string{}
	}
	campaign.ModeratedBy = moderatedBy.String
	if moderatedAt.Valid {
		t := moderatedAt.Time
		campaign.ModeratedAt = &t
	}
	return campaign, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
