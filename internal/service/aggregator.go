package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/andressep95/verification-service/internal/domain"
)

const approvedConfidence = 0.95

// evaluate recomputes the pending set from scratch and finalizes s when
// nothing is left. It reports whether this call performed the transition,
// so the caller fires the webhook exactly once.
func evaluate(s *domain.VerificationSession, now time.Time) bool {
	if s.Status.IsTerminal() || len(s.Pending()) > 0 {
		return false
	}
	s.Status = domain.StatusCompleted
	s.VerificationResult = approvedResult(s, now)
	return true
}

func approvedResult(s *domain.VerificationSession, now time.Time) *domain.VerificationResult {
	return &domain.VerificationResult{
		OverallStatus:  domain.OverallApproved,
		Confidence:     approvedConfidence,
		Timestamp:      now,
		VerificationID: newVerificationID(),
		PersonData:     domain.PersonDataFrom(s),
	}
}

func rejectedResult(s *domain.VerificationSession, reason string, now time.Time) *domain.VerificationResult {
	return &domain.VerificationResult{
		OverallStatus:  domain.OverallRejected,
		Timestamp:      now,
		VerificationID: newVerificationID(),
		PersonData:     domain.PersonDataFrom(s),
		Reason:         reason,
	}
}

func newVerificationID() string {
	return "verif-" + uuid.NewString()
}
