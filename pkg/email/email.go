package email

import (
	"context"
)

// Notifier sends end-user notifications about a verification outcome.
type Notifier interface {
	// SendVerificationResult tells the person behind a session how it ended.
	SendVerificationResult(ctx context.Context, msg ResultMessage) error
}

// ResultMessage is everything a result e-mail needs.
type ResultMessage struct {
	To             string
	Name           string
	SessionID      string
	VerificationID string
	OverallStatus  string
}

// Config holds e-mail delivery settings.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NoopNotifier drops every message. Used when no provider is configured.
type NoopNotifier struct{}

func (NoopNotifier) SendVerificationResult(context.Context, ResultMessage) error { return nil }
