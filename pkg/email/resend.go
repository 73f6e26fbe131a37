package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
)

// ResendNotifier implements Notifier using Resend
type ResendNotifier struct {
	client *resend.Client
	config Config
}

// NewResendNotifier creates a new Resend backed notifier
func NewResendNotifier(config Config) (*ResendNotifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}
	if config.FromName == "" {
		config.FromName = "NotaryPro Identity"
	}

	return &ResendNotifier{
		client: resend.NewClient(config.APIKey),
		config: config,
	}, nil
}

func (s *ResendNotifier) SendVerificationResult(ctx context.Context, msg ResultMessage) error {
	if msg.To == "" {
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail),
		To:      []string{msg.To},
		Subject: ResultSubject(msg.OverallStatus),
		Html:    ResultEmailTemplate(msg),
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send verification result email: %w", err)
	}

	log.Info().
		Str("session_id", msg.SessionID).
		Str("email_id", sent.Id).
		Msg("verification result email sent")
	return nil
}
