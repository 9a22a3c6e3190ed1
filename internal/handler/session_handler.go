package handler

import (
	"errors"
	"net/http"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
	"github.com/examroom/examroom-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles exam-taking endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// failSession maps session service errors onto API error codes.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrDurationNotConfigured):
		response.Fail(c, http.StatusConflict, response.ErrDurationNotConfigured)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotSessionOwner)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusConflict, response.ErrSessionExpired)
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// StartSession godoc
// POST /api/v1/exams/:exam/sessions
// Opens a new timed attempt on a published exam.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	state, err := h.sessionService.CreateSession(c.Request.Context(), claims.UserID, ref)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": state})
}

// GetSessionState godoc
// GET /api/v1/sessions/:session_id
// Returns the full attempt state, exam payload included. Used on page reload.
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetSessionState(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// Heartbeat godoc
// GET /api/v1/sessions/:session_id/heartbeat
// Returns the server-clock countdown so clients can resynchronize.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	hb, err := h.sessionService.Heartbeat(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"heartbeat": hb})
}

// AutoSave godoc
// PATCH /api/v1/sessions/:session_id
// Replaces the session's saved answer map.
func (h *SessionHandler) AutoSave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.AutoSaveAnswers(c.Request.Context(), claims.UserID, id, req.Answers); err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "answers saved"})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Grades the attempt and finalizes it. Fires exactly once per session.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, id, req.Answers)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/submission
// Returns the graded review view with the answer key revealed.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.sessionService.GetResult(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": view})
}

// History godoc
// GET /api/v1/exams/:exam/sessions
// Lists the caller's attempts on an exam, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	attempts, err := h.sessionService.History(c.Request.Context(), claims.UserID, ref)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetSubmission godoc
// GET /api/v1/submissions/:submission_id
// Returns the graded review view looked up by submission id.
func (h *SessionHandler) GetSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.sessionService.GetSubmission(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": view})
}
