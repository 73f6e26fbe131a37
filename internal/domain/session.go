package domain

import (
	"time"
)

// Status is the lifecycle state of a verification session.
type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo allows only forward moves. Staying in the same
// non-terminal state is accepted so repeated uploads are idempotent.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// VerificationSession tracks one identity verification attempt.
type VerificationSession struct {
	SessionID              string              `json:"sessionId" db:"session_id"`
	APIKeyOwner            string              `json:"apiKeyOwner" db:"api_key_owner"`
	Status                 Status              `json:"status" db:"status"`
	RequiredVerifications  StepSet             `json:"requiredVerifications" db:"required_verifications"`
	CompletedVerifications StepSet             `json:"completedVerifications" db:"completed_verifications"`
	CallbackURL            string              `json:"callbackUrl" db:"callback_url"`
	UserData               UserData            `json:"userData" db:"user_data"`
	DocumentData           *DocumentData       `json:"documentData,omitempty" db:"document_data"`
	FacialData             *FacialData         `json:"facialData,omitempty" db:"facial_data"`
	NFCData                *NFCData            `json:"nfcData,omitempty" db:"nfc_data"`
	VerificationResult     *VerificationResult `json:"verificationResult,omitempty" db:"verification_result"`
	TokenExpiresAt         *time.Time          `json:"tokenExpiresAt,omitempty" db:"token_expires_at"`
	CreatedAt              time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time           `json:"updatedAt" db:"updated_at"`
}

// Pending returns the required steps that are not completed yet.
func (s *VerificationSession) Pending() StepSet {
	return Pending(s.RequiredVerifications, s.CompletedVerifications)
}

// MarkCompleted records kind as completed when it is required and not yet
// recorded. The first completion moves a created session to in_progress.
// It returns false when nothing changed.
func (s *VerificationSession) MarkCompleted(kind StepKind) bool {
	if !s.RequiredVerifications.Contains(kind) || s.CompletedVerifications.Contains(kind) {
		return false
	}
	s.CompletedVerifications = s.CompletedVerifications.With(kind)
	if s.Status == StatusCreated {
		s.Status = StatusInProgress
	}
	return true
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s *VerificationSession) Clone() *VerificationSession {
	if s == nil {
		return nil
	}
	out := *s
	out.RequiredVerifications = s.RequiredVerifications.Clone()
	out.CompletedVerifications = s.CompletedVerifications.Clone()
	out.UserData = s.UserData.Clone()
	if s.DocumentData != nil {
		d := *s.DocumentData
		out.DocumentData = &d
	}
	if s.FacialData != nil {
		f := *s.FacialData
		if s.FacialData.LivenessScore != nil {
			score := *s.FacialData.LivenessScore
			f.LivenessScore = &score
		}
		out.FacialData = &f
	}
	if s.NFCData != nil {
		n := *s.NFCData
		out.NFCData = &n
	}
	if s.VerificationResult != nil {
		r := *s.VerificationResult
		out.VerificationResult = &r
	}
	if s.TokenExpiresAt != nil {
		t := *s.TokenExpiresAt
		out.TokenExpiresAt = &t
	}
	return &out
}

// SessionPatch is a partial update. Nil fields are left untouched;
// CompletedVerifications is merged, never replaced.
type SessionPatch struct {
	Status                 *Status
	CompletedVerifications StepSet
	DocumentData           *DocumentData
	FacialData             *FacialData
	NFCData                *NFCData
	VerificationResult     *VerificationResult
}

// Apply merges the patch into s and stamps UpdatedAt.
func (p SessionPatch) Apply(s *VerificationSession, now time.Time) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	for _, kind := range p.CompletedVerifications {
		s.CompletedVerifications = s.CompletedVerifications.With(kind)
	}
	if p.DocumentData != nil {
		s.DocumentData = p.DocumentData
	}
	if p.FacialData != nil {
		s.FacialData = p.FacialData
	}
	if p.NFCData != nil {
		s.NFCData = p.NFCData
	}
	if p.VerificationResult != nil {
		s.VerificationResult = p.VerificationResult
	}
	s.UpdatedAt = now
}
