package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery records one outbound callback attempt.
type WebhookDelivery struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	URL        string    `json:"url" db:"url"`
	Status     Status    `json:"status" db:"status"`
	StatusCode int       `json:"status_code" db:"status_code"`
	Error      string    `json:"error,omitempty" db:"error"`
	Signature  string    `json:"signature" db:"signature"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (d *WebhookDelivery) Succeeded() bool {
	return d.Error == "" && d.StatusCode >= 200 && d.StatusCode < 300
}
