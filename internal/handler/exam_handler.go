package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
	"github.com/examroom/examroom-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// ExamHandler handles exam catalog endpoints.
type ExamHandler struct {
	examService       *service.ExamService
	submissionService *service.SubmissionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, submissionService *service.SubmissionService) *ExamHandler {
	return &ExamHandler{
		examService:       examService,
		submissionService: submissionService,
	}
}

// failExam maps catalog service errors onto API error codes.
func failExam(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.FailWithDetails(c, http.StatusBadRequest, response.ErrInvalidQuestions, vErr.Problems)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotExamAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamAuthor)
	case errors.Is(err, service.ErrExamCodeTaken):
		response.Fail(c, http.StatusConflict, response.ErrExamCodeTaken)
	case errors.Is(err, service.ErrInvalidStatus):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseRef reads the :exam path segment as either a UUID or a join code.
func parseRef(c *gin.Context) (model.ExamRef, bool) {
	ref, err := model.ParseExamRef(c.Param("exam"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return model.ExamRef{}, false
	}
	return ref, true
}

// ListExams godoc
// GET /api/v1/exams?status=&page=&per_page=
// Lists the authenticated user's exams with pagination, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.ListByAuthor(c.Request.Context(),
		claims.UserID, c.Query("status"), page, perPage)
	if err != nil {
		failExam(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/exams
// Creates a new exam with questions in one shot.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/exams/:exam
// Returns the full exam aggregate, answer key included. Author only.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetForAuthor(c.Request.Context(), ref, claims.UserID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PATCH /api/v1/exams/:exam
// Applies partial changes; a questions array replaces the whole question set.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), ref, claims.UserID, &req)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/exams/:exam
// Removes an exam with its questions, sessions and submissions.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), ref, claims.UserID); err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam deleted"})
}

// GetExamResults godoc
// GET /api/v1/exams/:exam/results
// Returns all submissions for an exam. Author only.
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	results, err := h.submissionService.ListForExam(c.Request.Context(), ref, claims.UserID)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// PreviewExam godoc
// GET /api/v1/public/exams/:exam
// Public join-screen view of a published exam: title, duration and question
// count, no questions.
func (h *ExamHandler) PreviewExam(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	preview, err := h.examService.Preview(c.Request.Context(), ref)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": preview})
}
