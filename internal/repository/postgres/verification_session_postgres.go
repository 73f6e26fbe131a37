package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

const uniqueViolation = "23505"

const sessionColumns = `
	session_id, api_key_owner, status, required_verifications,
	completed_verifications, callback_url, user_data, document_data,
	facial_data, nfc_data, verification_result, token_expires_at,
	created_at, updated_at`

type verificationSessionRepository struct {
	db *sqlx.DB
}

// NewVerificationSessionRepository creates a new PostgreSQL session repository
func NewVerificationSessionRepository(db *sqlx.DB) repository.VerificationSessionRepository {
	return &verificationSessionRepository{db: db}
}

// Create inserts a new verification session
func (r *verificationSessionRepository) Create(ctx context.Context, session *domain.VerificationSession) error {
	if session.CallbackURL == "" {
		return domain.NewValidationError("callbackUrl is required")
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	session.Status = domain.StatusCreated
	if session.CompletedVerifications == nil {
		session.CompletedVerifications = domain.StepSet{}
	}

	query := `
		INSERT INTO verification_sessions (` + sessionColumns + `
		) VALUES (
			:session_id, :api_key_owner, :status, :required_verifications,
			:completed_verifications, :callback_url, :user_data, :document_data,
			:facial_data, :nfc_data, :verification_result, :token_expires_at,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateSession
		}
		return errors.Wrap(err, "failed to create verification session")
	}

	return nil
}

// GetBySessionID retrieves a session by its public identifier
func (r *verificationSessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE session_id = $1`

	var session domain.VerificationSession
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "failed to get verification session")
	}

	return &session, nil
}

// Update merges a partial update into the stored session
func (r *verificationSessionRepository) Update(ctx context.Context, sessionID string, patch domain.SessionPatch) (*domain.VerificationSession, error) {
	return r.Mutate(ctx, sessionID, func(s *domain.VerificationSession) error {
		patch.Apply(s, time.Now().UTC())
		return nil
	})
}

// Mutate locks the row for the duration of fn so concurrent uploads for the
// same session serialize instead of overwriting each other.
func (r *verificationSessionRepository) Mutate(ctx context.Context, sessionID string, fn repository.MutateFunc) (*domain.VerificationSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE session_id = $1 FOR UPDATE`

	var session domain.VerificationSession
	if err := tx.GetContext(ctx, &session, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "failed to lock verification session")
	}

	if err := fn(&session); err != nil {
		return nil, err
	}
	session.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE verification_sessions
		SET status = :status,
			completed_verifications = :completed_verifications,
			document_data = :document_data,
			facial_data = :facial_data,
			nfc_data = :nfc_data,
			verification_result = :verification_result,
			updated_at = :updated_at
		WHERE session_id = :session_id`

	if _, err := tx.NamedExecContext(ctx, update, &session); err != nil {
		return nil, errors.Wrap(err, "failed to update verification session")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit verification session")
	}

	return &session, nil
}
