package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

type WebhookDeliveryRepository struct {
	mu         sync.Mutex
	deliveries []domain.WebhookDelivery
}

var _ repository.WebhookDeliveryRepository = (*WebhookDeliveryRepository)(nil)

func NewWebhookDeliveryRepository() *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{}
}

func (r *WebhookDeliveryRepository) Create(_ context.Context, delivery *domain.WebhookDelivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, *delivery)
	return nil
}

func (r *WebhookDeliveryRepository) ListBySessionID(_ context.Context, sessionID string) ([]*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.WebhookDelivery
	for _, d := range r.deliveries {
		if d.SessionID == sessionID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}
