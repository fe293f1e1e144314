package types

import "time"

const (
	NotificationPasswordResetOTP = "password.reset_requested"
	NotificationRoleChanged      = "role.changed"
	NotificationDonationReceived = "donation.received"
	NotificationContactReceived  = "contact.received"
	NotificationContactResponded = "contact.responded"
)

// Notification is an outbound message event consumed by the mailer.
type Notification struct {
	Type      string            `json:"type"`
	To        string            `json:"to"`
	Name      string            `json:"name,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
