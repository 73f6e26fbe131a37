package service

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/config"
	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
	"github.com/andressep95/verification-service/pkg/storage"
)

const defaultDocumentType = "ID"

// SessionTokenIssuer signs the bearer token handed out at creation.
type SessionTokenIssuer interface {
	GenerateSessionToken(sessionID, owner string, ttl time.Duration) (string, time.Time, error)
}

// Finalizer is told about every terminal transition, once.
type Finalizer interface {
	SessionFinalized(ctx context.Context, s *domain.VerificationSession)
}

type VerificationService struct {
	sessions  repository.VerificationSessionRepository
	tokens    SessionTokenIssuer
	store     storage.Store
	finalizer Finalizer
	cfg       config.VerificationConfig
	now       func() time.Time
}

func NewVerificationService(
	sessions repository.VerificationSessionRepository,
	tokens SessionTokenIssuer,
	store storage.Store,
	finalizer Finalizer,
	cfg config.VerificationConfig,
) *VerificationService {
	return &VerificationService{
		sessions:  sessions,
		tokens:    tokens,
		store:     store,
		finalizer: finalizer,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateSessionInput struct {
	CallbackURL           string          `json:"callbackUrl" validate:"required,http_url,max=2048"`
	RequiredVerifications []string        `json:"requiredVerifications" validate:"omitempty,max=4,dive,oneof=document facial nfc liveness"`
	UserData              domain.UserData `json:"userData"`
	ExpiresIn             int             `json:"expiresIn" validate:"min=0"`
}

type CreatedSession struct {
	SessionID       string `json:"sessionId"`
	Token           string `json:"token"`
	VerificationURL string `json:"verificationUrl"`
	ExpiresIn       int    `json:"expiresIn"`
}

// Artifact is an uploaded file.
type Artifact struct {
	Filename string
	Content  io.Reader
}

// CreateSession opens a session on behalf of owner and issues its token.
func (s *VerificationService) CreateSession(ctx context.Context, owner string, in CreateSessionInput) (*CreatedSession, error) {
	if in.CallbackURL == "" {
		return nil, domain.NewValidationError("callbackUrl is required")
	}

	required, invalid := domain.NewStepSet(in.RequiredVerifications)
	if len(invalid) > 0 {
		return nil, domain.NewValidationError("unknown verification kind: " + invalid[0])
	}
	if len(required) == 0 {
		required = domain.AllStepKinds.Clone()
	}

	ttl := s.cfg.DefaultTokenTTL
	if in.ExpiresIn < 0 {
		return nil, domain.NewValidationError("expiresIn must be positive")
	}
	if in.ExpiresIn > 0 {
		ttl = time.Duration(in.ExpiresIn) * time.Second
	}
	if ttl < s.cfg.MinTokenTTL || ttl > s.cfg.MaxTokenTTL {
		return nil, domain.NewValidationError(
			"expiresIn must be between " + seconds(s.cfg.MinTokenTTL) + " and " + seconds(s.cfg.MaxTokenTTL) + " seconds")
	}

	sessionID := "session-" + uuid.NewString()
	token, expiresAt, err := s.tokens.GenerateSessionToken(sessionID, owner, ttl)
	if err != nil {
		return nil, errors.Wrap(err, "issue session token")
	}

	session := &domain.VerificationSession{
		SessionID:              sessionID,
		APIKeyOwner:            owner,
		RequiredVerifications:  required,
		CompletedVerifications: domain.StepSet{},
		CallbackURL:            in.CallbackURL,
		UserData:               in.UserData,
		TokenExpiresAt:         &expiresAt,
		CreatedAt:              s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	log.Info().
		Str("session_id", sessionID).
		Str("owner", owner).
		Strs("required", required.Strings()).
		Msg("verification session created")

	return &CreatedSession{
		SessionID:       sessionID,
		Token:           token,
		VerificationURL: s.cfg.BaseURL + "/identity-verification/" + sessionID,
		ExpiresIn:       int(ttl / time.Second),
	}, nil
}

// GetSession returns the current state. Reads go straight to the store so a
// read after any mutation reflects it.
func (s *VerificationService) GetSession(ctx context.Context, p domain.Principal, sessionID string) (*domain.VerificationSession, error) {
	if err := checkPrincipalSession(p, sessionID); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(p, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *VerificationService) UploadDocument(ctx context.Context, p domain.Principal, sessionID string, file *Artifact, documentType string) (*domain.VerificationSession, error) {
	if err := checkPrincipalSession(p, sessionID); err != nil {
		return nil, err
	}
	if file == nil || file.Content == nil {
		return nil, domain.NewValidationError("documentImage file is required")
	}
	if documentType == "" {
		documentType = defaultDocumentType
	}

	if _, err := s.loadOpen(ctx, p, sessionID); err != nil {
		return nil, err
	}
	path, err := s.save(ctx, sessionID, domain.StepDocument, file)
	if err != nil {
		return nil, err
	}

	return s.completeStep(ctx, p, sessionID, domain.StepDocument, func(v *domain.VerificationSession) {
		v.DocumentData = &domain.DocumentData{DocumentImagePath: path, DocumentType: documentType}
		v.MarkCompleted(domain.StepDocument)
	})
}

// UploadSelfie stores the selfie and marks facial. A liveness score at or
// above the configured threshold also satisfies liveness.
func (s *VerificationService) UploadSelfie(ctx context.Context, p domain.Principal, sessionID string, file *Artifact, livenessScore *float64) (*domain.VerificationSession, error) {
	if err := checkPrincipalSession(p, sessionID); err != nil {
		return nil, err
	}
	if file == nil || file.Content == nil {
		return nil, domain.NewValidationError("selfieImage file is required")
	}
	if livenessScore != nil && (*livenessScore < 0 || *livenessScore > 1) {
		return nil, domain.NewValidationError("livenessScore must be between 0 and 1")
	}

	if _, err := s.loadOpen(ctx, p, sessionID); err != nil {
		return nil, err
	}
	path, err := s.save(ctx, sessionID, domain.StepFacial, file)
	if err != nil {
		return nil, err
	}

	return s.completeStep(ctx, p, sessionID, domain.StepFacial, func(v *domain.VerificationSession) {
		v.FacialData = &domain.FacialData{SelfieImagePath: path, LivenessScore: livenessScore}
		v.MarkCompleted(domain.StepFacial)
		if livenessScore != nil && *livenessScore >= s.cfg.LivenessThreshold {
			v.MarkCompleted(domain.StepLiveness)
		}
	})
}

func (s *VerificationService) SubmitNFC(ctx context.Context, p domain.Principal, sessionID string, data *domain.NFCData) (*domain.VerificationSession, error) {
	if err := checkPrincipalSession(p, sessionID); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, domain.NewValidationError("nfcData is required")
	}
	if data.DocumentNumber == "" {
		return nil, domain.NewValidationError("nfcData.documentNumber is required")
	}

	nfc := *data
	return s.completeStep(ctx, p, sessionID, domain.StepNFC, func(v *domain.VerificationSession) {
		v.NFCData = &nfc
		v.MarkCompleted(domain.StepNFC)
	})
}

// errAlreadyCompleted aborts a mutation that would not change anything.
var errAlreadyCompleted = errors.New("already completed")

// CompleteVerification finalizes a session whose required steps are all
// done. Calling it on a completed session returns the stored result.
func (s *VerificationService) CompleteVerification(ctx context.Context, p domain.Principal, sessionID string) (*domain.VerificationSession, error) {
	if err := checkPrincipalSession(p, sessionID); err != nil {
		return nil, err
	}

	var finalized bool
	updated, err := s.sessions.Mutate(ctx, sessionID, func(v *domain.VerificationSession) error {
		if err := checkOwner(p, v); err != nil {
			return err
		}
		switch v.Status {
		case domain.StatusCompleted:
			return errAlreadyCompleted
		case domain.StatusFailed:
			return domain.ErrSessionFinalized
		}
		if pending := v.Pending(); len(pending) > 0 {
			return &domain.IncompleteError{Missing: pending}
		}
		finalized = evaluate(v, s.now())
		return nil
	})
	if errors.Is(err, errAlreadyCompleted) {
		return s.sessions.GetBySessionID(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if finalized {
		log.Info().Str("session_id", sessionID).Msg("verification completed")
		s.finalizer.SessionFinalized(ctx, updated)
	}
	return updated, nil
}

type UpdateSessionInput struct {
	Status                string `json:"status" validate:"omitempty,oneof=in_progress completed failed"`
	CompletedVerification string `json:"completedVerification" validate:"omitempty,oneof=document facial nfc liveness"`
	Reason                string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateSession is the operator path: it can record a step out of band and
// is the only way to fail a session.
func (s *VerificationService) UpdateSession(ctx context.Context, sessionID string, in UpdateSessionInput) (*domain.VerificationSession, error) {
	if in.Status == "" && in.CompletedVerification == "" {
		return nil, domain.NewValidationError("status or completedVerification is required")
	}
	next := domain.Status(in.Status)
	if in.Status != "" && !next.Valid() {
		return nil, domain.NewValidationError("unknown status: " + in.Status)
	}
	kind := domain.StepKind(in.CompletedVerification)
	if in.CompletedVerification != "" && !kind.Valid() {
		return nil, domain.NewValidationError("unknown verification kind: " + in.CompletedVerification)
	}

	var finalized bool
	updated, err := s.sessions.Mutate(ctx, sessionID, func(v *domain.VerificationSession) error {
		if v.Status.IsTerminal() {
			return domain.ErrSessionFinalized
		}
		if in.CompletedVerification != "" {
			v.MarkCompleted(kind)
		}

		now := s.now()
		switch {
		case in.Status == "":
			finalized = evaluate(v, now)
		case !v.Status.CanTransitionTo(next):
			return domain.ErrInvalidTransition
		case next == domain.StatusCompleted:
			if pending := v.Pending(); len(pending) > 0 {
				return &domain.IncompleteError{Missing: pending}
			}
			finalized = evaluate(v, now)
		case next == domain.StatusFailed:
			v.Status = domain.StatusFailed
			v.VerificationResult = rejectedResult(v, in.Reason, now)
			finalized = true
		default:
			v.Status = next
			finalized = evaluate(v, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("status", string(updated.Status)).
		Msg("verification session updated by operator")

	if finalized {
		s.finalizer.SessionFinalized(ctx, updated)
	}
	return updated, nil
}

// completeStep applies one step upload inside a single read-modify-write
// and runs the aggregator on the result.
func (s *VerificationService) completeStep(ctx context.Context, p domain.Principal, sessionID string, kind domain.StepKind, apply func(*domain.VerificationSession)) (*domain.VerificationSession, error) {
	var finalized bool
	updated, err := s.sessions.Mutate(ctx, sessionID, func(v *domain.VerificationSession) error {
		if err := checkOwner(p, v); err != nil {
			return err
		}
		if v.Status.IsTerminal() {
			return domain.ErrSessionFinalized
		}
		apply(v)
		finalized = evaluate(v, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("step", string(kind)).
		Strs("completed", updated.CompletedVerifications.Strings()).
		Msg("verification step recorded")

	if finalized {
		s.finalizer.SessionFinalized(ctx, updated)
	}
	return updated, nil
}

// loadOpen fetches a session the principal may still write to. It runs
// before artifacts hit storage so rejected uploads leave nothing behind.
func (s *VerificationService) loadOpen(ctx context.Context, p domain.Principal, sessionID string) (*domain.VerificationSession, error) {
	session, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(p, session); err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, domain.ErrSessionFinalized
	}
	return session, nil
}

func (s *VerificationService) save(ctx context.Context, sessionID string, kind domain.StepKind, file *Artifact) (string, error) {
	path, err := s.store.Save(ctx, sessionID, string(kind), file.Filename, file.Content)
	if errors.Is(err, storage.ErrTooLarge) {
		return "", domain.NewValidationError("file exceeds maximum upload size")
	}
	if err != nil {
		return "", errors.Wrapf(err, "store %s artifact", kind)
	}
	return path, nil
}

func checkPrincipalSession(p domain.Principal, sessionID string) error {
	if p.SessionID != sessionID {
		return domain.ErrSessionMismatch
	}
	return nil
}

func checkOwner(p domain.Principal, s *domain.VerificationSession) error {
	if s.APIKeyOwner != p.APIKeyOwner {
		return domain.ErrNotSessionOwner
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}
