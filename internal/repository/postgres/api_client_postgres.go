package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

type apiClientRepository struct {
	db *sqlx.DB
}

func NewAPIClientRepository(db *sqlx.DB) repository.APIClientRepository {
	return &apiClientRepository{db: db}
}

func (r *apiClientRepository) Create(ctx context.Context, client *domain.APIClient) error {
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt

	query := `
		INSERT INTO api_clients (id, name, key_prefix, key_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		client.ID, client.Name, client.KeyPrefix, client.KeyHash, client.Active,
		client.CreatedAt, client.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateKeyPrefix
		}
		return errors.Wrap(err, "failed to create api client")
	}

	return nil
}

func (r *apiClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIClient, error) {
	query := `
		SELECT id, name, key_prefix, key_hash, active, created_at, updated_at
		FROM api_clients
		WHERE id = $1`

	var client domain.APIClient
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIClientNotFound
		}
		return nil, errors.Wrap(err, "failed to get api client")
	}

	return &client, nil
}

func (r *apiClientRepository) GetByKeyPrefix(ctx context.Context, prefix string) (*domain.APIClient, error) {
	query := `
		SELECT id, name, key_prefix, key_hash, active, created_at, updated_at
		FROM api_clients
		WHERE key_prefix = $1`

	var client domain.APIClient
	if err := r.db.GetContext(ctx, &client, query, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIClientNotFound
		}
		return nil, errors.Wrap(err, "failed to get api client by prefix")
	}

	return &client, nil
}

func (r *apiClientRepository) List(ctx context.Context) ([]*domain.APIClient, error) {
	query := `
		SELECT id, name, key_prefix, key_hash, active, created_at, updated_at
		FROM api_clients
		ORDER BY created_at DESC`

	var clients []*domain.APIClient
	if err := r.db.SelectContext(ctx, &clients, query); err != nil {
		return nil, errors.Wrap(err, "failed to list api clients")
	}

	return clients, nil
}

func (r *apiClientRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE api_clients SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update api client")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rows == 0 {
		return domain.ErrAPIClientNotFound
	}

	return nil
}
