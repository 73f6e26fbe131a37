package repository

import (
	"context"

	"github.com/andressep95/verification-service/internal/domain"
)

// MutateFunc edits a session in place. Returning an error aborts the write.
type MutateFunc func(session *domain.VerificationSession) error

type VerificationSessionRepository interface {
	Create(ctx context.Context, session *domain.VerificationSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	// Update merges patch into the stored session and stamps updated_at.
	Update(ctx context.Context, sessionID string, patch domain.SessionPatch) (*domain.VerificationSession, error)
	// Mutate runs fn against the current row with no other writer able to
	// interleave, then persists the result.
	Mutate(ctx context.Context, sessionID string, fn MutateFunc) (*domain.VerificationSession, error)
}
