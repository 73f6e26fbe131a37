package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
	"github.com/andressep95/verification-service/pkg/email"
	"github.com/andressep95/verification-service/pkg/webhook"
)

// WebhookSender posts one signed payload. Implemented by webhook.Notifier.
type WebhookSender interface {
	Notify(ctx context.Context, url string, p webhook.Payload) (webhook.Delivery, error)
}

// WebhookDispatcher announces terminal transitions to the integrator's
// callback URL and to the person being verified. Failures are logged and
// recorded, never returned: the request that finalized the session has
// already committed.
type WebhookDispatcher struct {
	sender     WebhookSender
	deliveries repository.WebhookDeliveryRepository
	mailer     email.Notifier
	now        func() time.Time
}

func NewWebhookDispatcher(sender WebhookSender, deliveries repository.WebhookDeliveryRepository, mailer email.Notifier) *WebhookDispatcher {
	if mailer == nil {
		mailer = email.NoopNotifier{}
	}
	return &WebhookDispatcher{
		sender:     sender,
		deliveries: deliveries,
		mailer:     mailer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SessionFinalized runs synchronously and outlives a canceled request.
func (d *WebhookDispatcher) SessionFinalized(ctx context.Context, s *domain.VerificationSession) {
	ctx = context.WithoutCancel(ctx)
	logger := log.With().Str("session_id", s.SessionID).Str("status", string(s.Status)).Logger()

	payload := BuildPayload(s, d.now())
	delivery, err := d.sender.Notify(ctx, s.CallbackURL, payload)

	record := &domain.WebhookDelivery{
		SessionID:  s.SessionID,
		URL:        s.CallbackURL,
		Status:     s.Status,
		StatusCode: delivery.StatusCode,
		Signature:  delivery.Signature,
	}
	if err != nil {
		record.Error = err.Error()
		logger.Error().Err(err).Int("status_code", delivery.StatusCode).Msg("webhook delivery failed")
	} else {
		logger.Info().Int("status_code", delivery.StatusCode).Dur("duration", delivery.Duration).Msg("webhook delivered")
	}

	if err := d.deliveries.Create(ctx, record); err != nil {
		logger.Error().Err(err).Msg("failed to record webhook delivery")
	}

	d.sendResultEmail(ctx, s)
}

func (d *WebhookDispatcher) sendResultEmail(ctx context.Context, s *domain.VerificationSession) {
	if s.UserData.Email == "" || s.VerificationResult == nil {
		return
	}
	msg := email.ResultMessage{
		To:             s.UserData.Email,
		Name:           s.UserData.Name,
		SessionID:      s.SessionID,
		VerificationID: s.VerificationResult.VerificationID,
		OverallStatus:  s.VerificationResult.OverallStatus,
	}
	if err := d.mailer.SendVerificationResult(ctx, msg); err != nil {
		log.Warn().Err(err).Str("session_id", s.SessionID).Msg("failed to send result email")
	}
}

// Deliveries lists recorded attempts for one session, oldest first.
func (d *WebhookDispatcher) Deliveries(ctx context.Context, sessionID string) ([]*domain.WebhookDelivery, error) {
	return d.deliveries.ListBySessionID(ctx, sessionID)
}

// BuildPayload shapes the callback body. The result is only included once
// the session is terminal.
func BuildPayload(s *domain.VerificationSession, now time.Time) webhook.Payload {
	p := webhook.Payload{
		SessionID:              s.SessionID,
		Status:                 string(s.Status),
		CompletedVerifications: s.CompletedVerifications.Strings(),
		RequiredVerifications:  s.RequiredVerifications.Strings(),
		Timestamp:              now,
	}
	if s.Status.IsTerminal() && s.VerificationResult != nil {
		p.VerificationResult = s.VerificationResult
	}
	return p
}
