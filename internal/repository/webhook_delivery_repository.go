package repository

import (
	"context"

	"github.com/andressep95/verification-service/internal/domain"
)

type WebhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.WebhookDelivery) error
	ListBySessionID(ctx context.Context, sessionID string) ([]*domain.WebhookDelivery, error)
}
