package models

import "time"

// DeliveryLogEntry records one delivery attempt against one device token for
// one queue item. Entries are immutable once written; they exist for
// diagnostics and for deciding token deactivation.
type DeliveryLogEntry struct {
	ID           string    `json:"id" db:"id"`
	IntentID     string    `json:"intent_id" db:"intent_id"`
	Token        string    `json:"token" db:"token"`
	Platform     Platform  `json:"platform" db:"platform"`
	Success      bool      `json:"success" db:"success"`
	MessageID    string    `json:"message_id,omitempty" db:"message_id"`
	ErrorCode    string    `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
