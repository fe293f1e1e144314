package services

import (
	"context"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestContactSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.contacts.Submit(ctx, ContactInput{
		Name:    "Dana",
		Email:   "Dana@Example.com",
		Subject: "Receipt",
		Message: "Where is my receipt?",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ContactUnread, c.Status)
	assert.Equal(t, "dana@example.com", c.Email)
	assert.Empty(t, c.UserID)

	_, ok := f.notifier.last(types.NotificationContactReceived)
	assert.True(t, ok)

	_, err = f.contacts.Submit(ctx, ContactInput{Name: "Dana", Email: "dana@example.com", Subject: "x"})
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = f.contacts.Submit(ctx, ContactInput{Name: "Dana", Email: "dana", Subject: "x", Message: "y"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestContactTriage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", types.RoleAdmin)

	c, err := f.contacts.Submit(ctx, ContactInput{Name: "Eve", Email: "eve@example.com", Subject: "Help", Message: "Cannot log in"})
	require.NoError(t, err)

	_, err = f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{})
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{Status: strPtr("archived")})
	assert.ErrorIs(t, err, ErrInvalidContactStatus)
	_, err = f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{Status: strPtr(types.ContactResolved)})
	assert.ErrorIs(t, err, ErrResponseRequired)

	inProgress, err := f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{Status: strPtr(types.ContactInProgress)})
	require.NoError(t, err)
	assert.Equal(t, types.ContactInProgress, inProgress.Status)
	assert.Nil(t, inProgress.RespondedAt)

	resolved, err := f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{
		Status:        strPtr(types.ContactResolved),
		AdminResponse: strPtr("Password reset link sent"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ContactResolved, resolved.Status)
	assert.Equal(t, admin.ID, resolved.RespondedBy)
	require.NotNil(t, resolved.RespondedAt)
	assert.Equal(t, "Password reset link sent", resolved.AdminResponse)

	n, ok := f.notifier.last(types.NotificationContactResponded)
	require.True(t, ok)
	assert.Equal(t, "eve@example.com", n.To)

	_, err = f.contacts.UpdateStatus(ctx, c.ID, admin.ID, ContactUpdate{Status: strPtr(types.ContactInProgress)})
	assert.ErrorIs(t, err, ErrInvalidContactTransition)

	_, err = f.contacts.UpdateStatus(ctx, "missing", admin.ID, ContactUpdate{Status: strPtr(types.ContactInProgress)})
	assert.ErrorIs(t, err, ErrContactNotFound)

	stats, err := f.contacts.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ContactStats{Total: 1, Resolved: 1}, stats)
}

func TestContactTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{types.ContactUnread, types.ContactInProgress, true},
		{types.ContactUnread, types.ContactResolved, true},
		{types.ContactUnread, types.ContactUnread, true},
		{types.ContactInProgress, types.ContactResolved, true},
		{types.ContactInProgress, types.ContactInProgress, true},
		{types.ContactInProgress, types.ContactUnread, false},
		{types.ContactResolved, types.ContactResolved, false},
		{types.ContactResolved, types.ContactUnread, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contactTransitionAllowed(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSortForUser(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	contacts := []types.Contact{
		{ID: "resolved-new", Status: types.ContactResolved, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "unread-old", Status: types.ContactUnread, CreatedAt: base},
		{ID: "progress", Status: types.ContactInProgress, CreatedAt: base},
		{ID: "unread-new", Status: types.ContactUnread, CreatedAt: base.Add(time.Hour)},
	}
	SortForUser(contacts)

	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"progress", "unread-new", "unread-old", "resolved-new"}, ids)
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.user(t, "admin@example.com", types.RoleAdmin)
	member := f.user(t, "member@example.com", types.RoleUser)

	submit := func(subject string) types.Contact {
		c, err := f.contacts.Submit(ctx, ContactInput{
			Name: member.Name, Email: member.Email, Subject: subject, Message: "details", UserID: member.ID,
		})
		require.NoError(t, err)
		return c
	}
	first := submit("first")
	second := submit("second")
	_, err := f.contacts.Submit(ctx, ContactInput{Name: "Anon", Email: "anon@example.com", Subject: "x", Message: "y"})
	require.NoError(t, err)

	_, err = f.contacts.UpdateStatus(ctx, first.ID, admin.ID, ContactUpdate{Status: strPtr(types.ContactInProgress)})
	require.NoError(t, err)

	msgs, err := f.contacts.ListForUser(ctx, member.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, msgs.Total)
	assert.True(t, msgs.HasUnread)
	assert.True(t, msgs.HasInProgress)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, first.ID, msgs.Messages[0].ID)
	assert.Equal(t, second.ID, msgs.Messages[1].ID)

	page, err := f.contacts.ListForUser(ctx, member.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, second.ID, page.Messages[0].ID)

	all, total, err := f.contacts.List(ctx, "all", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	_, _, err = f.contacts.List(ctx, "bogus", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidContactStatus)
}
