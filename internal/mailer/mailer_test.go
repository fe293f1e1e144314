package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/internal/mq"
	"github.com/fundraiseer/apiserver/types"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func message(t *testing.T, n types.Notification) mq.Message {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return mq.Message{ID: "m1", Data: data}
}

func TestRenderEveryNotificationType(t *testing.T) {
	tests := []struct {
		n    types.Notification
		want string
	}{
		{types.Notification{Type: types.NotificationPasswordResetOTP, Name: "Ada", Data: map[string]string{"otp": "123456", "expiresIn": "10m0s"}}, "123456"},
		{types.Notification{Type: types.NotificationRoleChanged, Name: "Ada", Data: map[string]string{"role": "admin"}}, `"admin"`},
		{types.Notification{Type: types.NotificationDonationReceived, Name: "Ada", Data: map[string]string{"amount": "25.00", "campaignTitle": "Wells"}}, "25.00"},
		{types.Notification{Type: types.NotificationContactReceived, Name: "Ada", Data: map[string]string{"subject": "Help"}}, "Help"},
		{types.Notification{Type: types.NotificationContactResponded, Name: "Ada", Data: map[string]string{"subject": "Help", "response": "Done", "status": "resolved"}}, "Done"},
	}
	for _, tt := range tests {
		t.Run(tt.n.Type, func(t *testing.T) {
			subject, body, err := Render(tt.n)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "Hi Ada")
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestRenderUnknownType(t *testing.T) {
	_, _, err := Render(types.Notification{Type: "nope"})
	assert.Error(t, err)
}

func TestConsumerSends(t *testing.T) {
	sender := &fakeSender{}
	c := NewConsumer(sender)

	err := c.Handle(context.Background(), message(t, types.Notification{
		Type: types.NotificationContactReceived,
		To:   "ada@example.com",
		Name: "Ada",
		Data: map[string]string{"subject": "Refund"},
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].to)
	assert.Equal(t, "We received your message", sender.sent[0].subject)
}

func TestConsumerDropsUndeliverable(t *testing.T) {
	sender := &fakeSender{}
	c := NewConsumer(sender)

	assert.NoError(t, c.Handle(context.Background(), mq.Message{ID: "x", Data: []byte("{")}))
	assert.NoError(t, c.Handle(context.Background(), message(t, types.Notification{Type: "unknown"})))
	assert.Empty(t, sender.sent)
}

func TestConsumerReturnsSendErrors(t *testing.T) {
	c := NewConsumer(&fakeSender{err: errors.New("smtp down")})
	err := c.Handle(context.Background(), message(t, types.Notification{
		Type: types.NotificationRoleChanged,
		To:   "ada@example.com",
		Data: map[string]string{"role": "user"},
	}))
	assert.Error(t, err)
}

func TestBuildMessageHeaders(t *testing.T) {
	raw := string(buildMessage("Fundraiseer <no-reply@x.io>", "ada@example.com", "Hello", "line1\nline2", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, strings.HasPrefix(raw, "From: Fundraiseer <no-reply@x.io>\r\n"))
	assert.Contains(t, raw, "To: ada@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "\r\n\r\nline1\r\nline2")
}
