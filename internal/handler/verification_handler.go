package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/handler/middleware"
	"github.com/andressep95/verification-service/internal/service"
	"github.com/andressep95/verification-service/pkg/validator"
)

type VerificationHandler struct {
	service   *service.VerificationService
	validator *validator.Validator
}

func NewVerificationHandler(svc *service.VerificationService, validator *validator.Validator) *VerificationHandler {
	return &VerificationHandler{
		service:   svc,
		validator: validator,
	}
}

type SubmitNFCRequest struct {
	NFCData *domain.NFCData `json:"nfcData" validate:"required"`
}

type sessionView struct {
	SessionID              string                     `json:"sessionId"`
	Status                 domain.Status              `json:"status"`
	RequiredVerifications  domain.StepSet             `json:"requiredVerifications"`
	CompletedVerifications domain.StepSet             `json:"completedVerifications"`
	PendingVerifications   domain.StepSet             `json:"pendingVerifications"`
	CreatedAt              time.Time                  `json:"createdAt"`
	UpdatedAt              time.Time                  `json:"updatedAt"`
	VerificationResult     *domain.VerificationResult `json:"verificationResult,omitempty"`
}

func newSessionView(s *domain.VerificationSession) sessionView {
	v := sessionView{
		SessionID:              s.SessionID,
		Status:                 s.Status,
		RequiredVerifications:  s.RequiredVerifications,
		CompletedVerifications: s.CompletedVerifications,
		PendingVerifications:   s.Pending(),
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
	if s.Status.IsTerminal() {
		v.VerificationResult = s.VerificationResult
	}
	return v
}

func stepAck(s *domain.VerificationSession, flag, message string) fiber.Map {
	return fiber.Map{
		flag:                     true,
		"message":                message,
		"sessionId":              s.SessionID,
		"status":                 s.Status,
		"completedVerifications": s.CompletedVerifications,
		"pendingVerifications":   s.Pending(),
	}
}

// CreateSession opens a verification session for the calling integrator
// POST /api/v1/identity/create-session
func (h *VerificationHandler) CreateSession(c *fiber.Ctx) error {
	client, ok := c.Locals(middleware.LocalAPIClient).(*domain.APIClient)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "invalid API key")
	}

	var req service.CreateSessionInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	created, err := h.service.CreateSession(c.UserContext(), client.ID.String(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, created)
}

// GET /api/v1/identity/session/:sessionId
func (h *VerificationHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.service.GetSession(c.UserContext(), principal(c), c.Params("sessionId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, newSessionView(session))
}

// POST /api/v1/identity/upload-document/:sessionId (multipart: documentImage, documentType)
func (h *VerificationHandler) UploadDocument(c *fiber.Ctx) error {
	file, closeFile, err := formArtifact(c, "documentImage")
	if err != nil {
		return respondError(c, err)
	}
	defer closeFile()

	session, err := h.service.UploadDocument(c.UserContext(), principal(c), c.Params("sessionId"), file, c.FormValue("documentType"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, stepAck(session, "documentUploaded", "document image uploaded"))
}

// POST /api/v1/identity/upload-selfie/:sessionId (multipart: selfieImage, livenessScore)
func (h *VerificationHandler) UploadSelfie(c *fiber.Ctx) error {
	var score *float64
	if raw := strings.TrimSpace(c.FormValue("livenessScore")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "livenessScore must be a number")
		}
		score = &v
	}

	file, closeFile, err := formArtifact(c, "selfieImage")
	if err != nil {
		return respondError(c, err)
	}
	defer closeFile()

	session, err := h.service.UploadSelfie(c.UserContext(), principal(c), c.Params("sessionId"), file, score)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, stepAck(session, "selfieUploaded", "selfie image uploaded"))
}

// POST /api/v1/identity/submit-nfc/:sessionId
func (h *VerificationHandler) SubmitNFC(c *fiber.Ctx) error {
	var req SubmitNFCRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := h.service.SubmitNFC(c.UserContext(), principal(c), c.Params("sessionId"), req.NFCData)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, stepAck(session, "nfcSubmitted", "NFC data received"))
}

// POST /api/v1/identity/complete-verification/:sessionId
func (h *VerificationHandler) CompleteVerification(c *fiber.Ctx) error {
	session, err := h.service.CompleteVerification(c.UserContext(), principal(c), c.Params("sessionId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"sessionId":          session.SessionID,
		"status":             session.Status,
		"verificationResult": session.VerificationResult,
	})
}

// UpdateSession is the operator endpoint, guarded by the admin token.
// POST /api/v1/identity/update-session/:sessionId
func (h *VerificationHandler) UpdateSession(c *fiber.Ctx) error {
	var req service.UpdateSessionInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := h.service.UpdateSession(c.UserContext(), c.Params("sessionId"), req)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"sessionId":              session.SessionID,
		"status":                 session.Status,
		"completedVerifications": session.CompletedVerifications,
	})
}

func principal(c *fiber.Ctx) domain.Principal {
	p, _ := c.Locals(middleware.LocalPrincipal).(domain.Principal)
	return p
}

// formArtifact opens an uploaded file. A missing field yields a nil
// artifact so the service reports which file is required.
func formArtifact(c *fiber.Ctx, field string) (*service.Artifact, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, func() {}, nil
	}
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.Artifact{Filename: header.Filename, Content: f}, func() { _ = f.Close() }, nil
}
