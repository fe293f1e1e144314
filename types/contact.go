package types

import "time"

const (
	ContactUnread     = "unread"
	ContactInProgress = "in-progress"
	ContactResolved   = "resolved"
)

// ValidContactStatus reports whether status is a known contact status.
func ValidContactStatus(status string) bool {
	switch status {
	case ContactUnread, ContactInProgress, ContactResolved:
		return true
	}
	return false
}

// Contact is a support message sent through the contact form.
type Contact struct {
	// ID is the unique identifier of the message.
	ID      string `json:"id" db:"id" bson:"_id"`
	Name    string `json:"name" db:"name" bson:"name"`
	Email   string `json:"email" db:"email" bson:"email"`
	Subject string `json:"subject" db:"subject" bson:"subject"`
	Message string `json:"message" db:"message" bson:"message"`

	// Status is one of unread, in-progress or resolved.
	Status string `json:"status" db:"status" bson:"status"`

	// UserID is empty for anonymous senders.
	UserID string `json:"userId,omitempty" db:"user_id" bson:"userId,omitempty"`

	AdminResponse string     `json:"adminResponse,omitempty" db:"admin_response" bson:"adminResponse,omitempty"`
	RespondedBy   string     `json:"respondedBy,omitempty" db:"responded_by" bson:"respondedBy,omitempty"`
	RespondedAt   *time.Time `json:"respondedAt,omitempty" db:"responded_at" bson:"respondedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Status string
	UserID string
	Offset int
	Limit  int
}
