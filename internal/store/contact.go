package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/google/uuid"
)

const contactColumns = `id, name, email, subject, message, status, user_id, admin_response, responded_by, responded_at, created_at, updated_at`

// ContactRepository handles persistence for support messages.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Get(ctx context.Context, id string) (types.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Contact{}, ErrNotFound
	}
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return scanContact(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *ContactRepository) GetForUpdate(ctx context.Context, id string) (types.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Contact{}, ErrNotFound
	}
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 FOR UPDATE`
	return scanContact(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *ContactRepository) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	contact.UpdatedAt = contact.CreatedAt

	const query = `
		INSERT INTO contacts (` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		contact.ID,
		contact.Name,
		contact.Email,
		contact.Subject,
		contact.Message,
		contact.Status,
		nullString(contact.UserID),
		contact.AdminResponse,
		nullString(contact.RespondedBy),
		contact.RespondedAt,
		contact.CreatedAt,
		contact.UpdatedAt,
	); err != nil {
		return types.Contact{}, mapWriteError(err)
	}
	return contact, nil
}

func (r *ContactRepository) Update(ctx context.Context, contact types.Contact) (types.Contact, error) {
	contact.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE contacts
		SET status = $1,
			admin_response = $2,
			responded_by = $3,
			responded_at = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		contact.Status,
		contact.AdminResponse,
		nullString(contact.RespondedBy),
		contact.RespondedAt,
		contact.UpdatedAt,
		contact.ID,
	)
	if err != nil {
		return types.Contact{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Contact{}, err
	}
	if affected == 0 {
		return types.Contact{}, ErrNotFound
	}
	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context, filter types.ContactFilter) ([]types.Contact, int, error) {
	where := ` WHERE ($1 = '' OR status = $1) AND ($2 = '' OR user_id::text = $2)`
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM contacts`+where, filter.Status, filter.UserID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + contactColumns + ` FROM contacts` + where + ` ORDER BY created_at DESC OFFSET $3 LIMIT $4`
	contacts, err := r.list(ctx, query, filter.Status, filter.UserID, offset, sqlLimit(filter.Limit))
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *ContactRepository) ListByUser(ctx context.Context, userID string) ([]types.Contact, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []types.Contact{}, nil
	}
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT status, COUNT(1) FROM contacts GROUP BY status`)
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

func (r *ContactRepository) list(ctx context.Context, query string, args ...any) ([]types.Contact, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]types.Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

func scanContact(row rowScanner) (types.Contact, error) {
	var (
		contact     types.Contact
		userID      sql.NullString
		respondedBy sql.NullString
		respondedAt sql.NullTime
	)
	err := row.Scan(
		&contact.ID,
		&contact.Name,
		&contact.Email,
		&contact.Subject,
		&contact.Message,
		&contact.Status,
		&userID,
		&contact.AdminResponse,
		&respondedBy,
		&respondedAt,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Contact{}, ErrNotFound
		}
		return types.Contact{}, err
	}
	contact.UserID = userID.String
	contact.RespondedBy = respondedBy.String
	if respondedAt.Valid {
		t := respondedAt.Time
		contact.RespondedAt = &t
	}
	return contact, nil
}
