package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
)

// ContactInput is a message submitted through the contact form.
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
	UserID  string
}

// ContactUpdate is an admin triage action. Nil fields are left untouched.
type ContactUpdate struct {
	Status        *string
	AdminResponse *string
}

// UserMessages is a page of a user's own messages in triage order.
type UserMessages struct {
	Messages      []types.Contact `json:"messages"`
	Total         int             `json:"total"`
	HasUnread     bool            `json:"hasUnread"`
	HasInProgress bool            `json:"hasInProgress"`
}

// ContactService implements the support message triage workflow.
type ContactService struct {
	contacts ContactRepository
	tx       Transactor
	notifier Notifier
	now      func() time.Time
}

func NewContactService(contacts ContactRepository, tx Transactor, notifier Notifier) *ContactService {
	return &ContactService{contacts: contacts, tx: tx, notifier: notifier, now: time.Now}
}

// Submit stores a new unread message.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (types.Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" || in.Email == "" || in.Subject == "" || in.Message == "" {
		return types.Contact{}, ErrMissingFields
	}
	if !validEmail(in.Email) {
		return types.Contact{}, ErrInvalidEmail
	}

	contact, err := s.contacts.Create(ctx, types.Contact{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
		Status:  types.ContactUnread,
		UserID:  in.UserID,
	})
	if err != nil {
		return types.Contact{}, fmt.Errorf("create contact: %w", err)
	}

	notify(ctx, s.notifier, types.Notification{
		Type: types.NotificationContactReceived,
		To:   contact.Email,
		Name: contact.Name,
		Data: map[string]string{"subject": contact.Subject},
	})
	return contact, nil
}

// allowedContactTransitions lists the legal status changes. Same-state
// updates are always allowed except out of resolved, which is terminal.
var allowedContactTransitions = map[string][]string{
	types.ContactUnread:     {types.ContactInProgress, types.ContactResolved},
	types.ContactInProgress: {types.ContactResolved},
}

func contactTransitionAllowed(from, to string) bool {
	if from == to {
		return from != types.ContactResolved
	}
	for _, next := range allowedContactTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus applies an admin triage action. Resolving requires a response,
// either supplied now or recorded earlier.
func (s *ContactService) UpdateStatus(ctx context.Context, contactID, adminID string, in ContactUpdate) (types.Contact, error) {
	if in.Status == nil && in.AdminResponse == nil {
		return types.Contact{}, ErrMissingFields
	}
	if in.Status != nil && !types.ValidContactStatus(*in.Status) {
		return types.Contact{}, ErrInvalidContactStatus
	}

	var (
		updated   types.Contact
		responded bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		contact, err := s.contacts.GetForUpdate(ctx, contactID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrContactNotFound
			}
			return err
		}

		next := contact.Status
		if in.Status != nil {
			next = *in.Status
		}
		if !contactTransitionAllowed(contact.Status, next) {
			return ErrInvalidContactTransition
		}

		if in.AdminResponse != nil {
			if response := strings.TrimSpace(*in.AdminResponse); response != "" {
				now := s.now().UTC()
				contact.AdminResponse = response
				contact.RespondedBy = adminID
				contact.RespondedAt = &now
				responded = true
			}
		}
		if next == types.ContactResolved && strings.TrimSpace(contact.AdminResponse) == "" {
			return ErrResponseRequired
		}
		contact.Status = next

		updated, err = s.contacts.Update(ctx, contact)
		if err != nil {
			return fmt.Errorf("update contact: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Contact{}, err
	}

	logger.FromContext(ctx).WithField("contact", contactID).WithField("status", updated.Status).Info("contact message triaged")
	if responded {
		notify(ctx, s.notifier, types.Notification{
			Type: types.NotificationContactResponded,
			To:   updated.Email,
			Name: updated.Name,
			Data: map[string]string{
				"subject":  updated.Subject,
				"response": updated.AdminResponse,
				"status":   updated.Status,
			},
		})
	}
	return updated, nil
}

func (s *ContactService) Get(ctx context.Context, id string) (types.Contact, error) {
	contact, err := s.contacts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Contact{}, ErrContactNotFound
		}
		return types.Contact{}, err
	}
	return contact, nil
}

// List returns messages for admins, newest first, optionally by status.
func (s *ContactService) List(ctx context.Context, status string, offset, limit int) ([]types.Contact, int, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "all" {
		status = ""
	}
	if status != "" && !types.ValidContactStatus(status) {
		return nil, 0, ErrInvalidContactStatus
	}
	return s.contacts.List(ctx, types.ContactFilter{Status: status, Offset: offset, Limit: clampLimit(limit)})
}

var contactPriority = map[string]int{
	types.ContactInProgress: 0,
	types.ContactUnread:     1,
	types.ContactResolved:   2,
}

// ListForUser returns a user's messages ordered in-progress, unread, resolved
// and newest first within each status. Pagination applies after ordering.
func (s *ContactService) ListForUser(ctx context.Context, userID string, offset, limit int) (UserMessages, error) {
	all, err := s.contacts.ListByUser(ctx, userID)
	if err != nil {
		return UserMessages{}, fmt.Errorf("list user messages: %w", err)
	}
	SortForUser(all)

	result := UserMessages{Total: len(all), Messages: []types.Contact{}}
	for _, c := range all {
		switch c.Status {
		case types.ContactUnread:
			result.HasUnread = true
		case types.ContactInProgress:
			result.HasInProgress = true
		}
	}

	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		result.Messages = all[offset:end]
	}
	return result, nil
}

// SortForUser orders messages by triage priority, then newest first.
func SortForUser(contacts []types.Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		pi, pj := contactPriority[contacts[i].Status], contactPriority[contacts[j].Status]
		if pi != pj {
			return pi < pj
		}
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
}

// Stats counts messages per status.
func (s *ContactService) Stats(ctx context.Context) (types.ContactStats, error) {
	counts, err := s.contacts.CountByStatus(ctx)
	if err != nil {
		return types.ContactStats{}, fmt.Errorf("count contacts: %w", err)
	}
	stats := types.ContactStats{
		Unread:     counts[types.ContactUnread],
		InProgress: counts[types.ContactInProgress],
		Resolved:   counts[types.ContactResolved],
	}
	stats.Total = stats.Unread + stats.InProgress + stats.Resolved
	return stats, nil
}
