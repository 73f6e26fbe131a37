package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

type webhookDeliveryRepository struct {
	db *sqlx.DB
}

func NewWebhookDeliveryRepository(db *sqlx.DB) repository.WebhookDeliveryRepository {
	return &webhookDeliveryRepository{db: db}
}

func (r *webhookDeliveryRepository) Create(ctx context.Context, delivery *domain.WebhookDelivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_deliveries (
			id, session_id, url, status, status_code, error, signature, created_at
		) VALUES (
			:id, :session_id, :url, :status, :status_code, :error, :signature, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, delivery); err != nil {
		return errors.Wrap(err, "failed to record webhook delivery")
	}

	return nil
}

func (r *webhookDeliveryRepository) ListBySessionID(ctx context.Context, sessionID string) ([]*domain.WebhookDelivery, error) {
	query := `
		SELECT id, session_id, url, status, status_code, error, signature, created_at
		FROM webhook_deliveries
		WHERE session_id = $1
		ORDER BY created_at ASC`

	var deliveries []*domain.WebhookDelivery
	if err := r.db.SelectContext(ctx, &deliveries, query, sessionID); err != nil {
		return nil, errors.Wrap(err, "failed to list webhook deliveries")
	}

	return deliveries, nil
}
