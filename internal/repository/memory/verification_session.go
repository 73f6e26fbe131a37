package memory

import (
	"context"
	"sync"
	"time"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

// VerificationSessionRepository keeps sessions in process memory. A single
// mutex serializes writers, which gives Mutate the same isolation as the
// row lock used by the postgres implementation.
type VerificationSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.VerificationSession
	now      func() time.Time
}

var _ repository.VerificationSessionRepository = (*VerificationSessionRepository)(nil)

func NewVerificationSessionRepository() *VerificationSessionRepository {
	return &VerificationSessionRepository{
		sessions: make(map[string]*domain.VerificationSession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *VerificationSessionRepository) Create(_ context.Context, session *domain.VerificationSession) error {
	if session.CallbackURL == "" {
		return domain.NewValidationError("callbackUrl is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.SessionID]; ok {
		return domain.ErrDuplicateSession
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	session.UpdatedAt = session.CreatedAt
	session.Status = domain.StatusCreated
	if session.CompletedVerifications == nil {
		session.CompletedVerifications = domain.StepSet{}
	}

	r.sessions[session.SessionID] = session.Clone()
	return nil
}

func (r *VerificationSessionRepository) GetBySessionID(_ context.Context, sessionID string) (*domain.VerificationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *VerificationSessionRepository) Update(ctx context.Context, sessionID string, patch domain.SessionPatch) (*domain.VerificationSession, error) {
	return r.Mutate(ctx, sessionID, func(s *domain.VerificationSession) error {
		patch.Apply(s, r.now())
		return nil
	})
}

func (r *VerificationSessionRepository) Mutate(_ context.Context, sessionID string, fn repository.MutateFunc) (*domain.VerificationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = r.now()

	r.sessions[sessionID] = working
	return working.Clone(), nil
}
