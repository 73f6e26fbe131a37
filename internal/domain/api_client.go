package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIClient is an integration allowed to open verification sessions.
// Its ID is the apiKeyOwner stamped on every session it creates.
type APIClient struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	KeyPrefix string    `json:"key_prefix" db:"key_prefix"`
	KeyHash   string    `json:"-" db:"key_hash"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
