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
)

// GeneratorHandler handles AI question generation.
type GeneratorHandler struct {
	generatorService *service.GeneratorService
}

// NewGeneratorHandler creates a new GeneratorHandler.
func NewGeneratorHandler(generatorService *service.GeneratorService) *GeneratorHandler {
	return &GeneratorHandler{generatorService: generatorService}
}

// GenerateExam godoc
// POST /api/v1/generate-exam
// Turns a pasted document into a draft exam of generated questions.
// Generation can take a while for large requests; the route is rate limited.
func (h *GeneratorHandler) GenerateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GenerateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.generatorService.GenerateExam(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		if errors.Is(err, service.ErrGenerationFailed) {
			response.Fail(c, http.StatusBadGateway, response.ErrGenerationFailed)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, result)
}
