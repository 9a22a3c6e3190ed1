package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/examroom/examroom-backend/internal/llm"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	chunkSize            = 10
	maxQuestions         = 150
	previousSummaryLimit = 5
	summaryMaxChars      = 160
)

// ErrGenerationFailed wraps any model-side failure during question generation.
var ErrGenerationFailed = errors.New("question generation failed")

// QuestionGenerator produces multiple-choice questions from a document.
// Satisfied by *llm.Client.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, document string, count int, language, difficulty string, previous []string) ([]llm.GeneratedQuestion, error)
}

// ExamCreator saves a generated exam. Satisfied by *ExamService.
type ExamCreator interface {
	Create(ctx context.Context, authorID uuid.UUID, req *model.CreateExamRequest) (*model.ExamWithQuestions, error)
}

// GeneratorService turns a source document into a draft exam by asking the
// LLM for questions in chunks. Chunking keeps each request small enough for
// the model to stay consistent, and each chunk's prompt carries a summary of
// recent questions so topics are not repeated.
type GeneratorService struct {
	gen   QuestionGenerator
	exams ExamCreator
	log   zerolog.Logger
}

// NewGeneratorService creates a new GeneratorService.
func NewGeneratorService(gen QuestionGenerator, exams ExamCreator) *GeneratorService {
	return &GeneratorService{
		gen:   gen,
		exams: exams,
		log:   log.With().Str("component", "generator_service").Logger(),
	}
}

// GenerateExam produces the requested number of questions and saves them as a
// new draft exam owned by the caller.
func (s *GeneratorService) GenerateExam(ctx context.Context, authorID uuid.UUID, req *model.GenerateExamRequest) (*model.GenerateExamResult, error) {
	want := req.NumQuestions
	if want == 0 {
		want = chunkSize
	}
	if want < 1 || want > maxQuestions {
		return nil, fmt.Errorf("%w: number of questions must be between 1 and %d", ErrGenerationFailed, maxQuestions)
	}

	aggregated := []model.QuestionInput{}
	chunk := 0
	for len(aggregated) < want {
		chunk++
		need := want - len(aggregated)
		if need > chunkSize {
			need = chunkSize
		}

		generated, err := s.gen.GenerateQuestions(ctx, req.Document, need,
			req.Language, req.Difficulty, buildPreviousSummary(aggregated))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrGenerationFailed, chunk, err)
		}
		if len(generated) == 0 {
			return nil, fmt.Errorf("%w: chunk %d returned no questions", ErrGenerationFailed, chunk)
		}
		if len(generated) > need {
			generated = generated[:need]
		}

		for _, g := range generated {
			aggregated = append(aggregated, model.QuestionInput{
				Content:     g.Content,
				Options:     g.Options,
				CorrectIdx:  g.CorrectIdx,
				Explanation: g.Explanation,
			})
		}

		s.log.Debug().
			Int("chunk", chunk).
			Int("generated", len(generated)).
			Int("total", len(aggregated)).
			Msg("generation chunk complete")
	}

	if problems := ValidateQuestions(aggregated); problems != nil {
		s.log.Warn().Strs("problems", problems).Msg("model produced invalid questions")
		return nil, fmt.Errorf("%w: model produced %d invalid questions", ErrGenerationFailed, len(problems))
	}

	exam, err := s.exams.Create(ctx, authorID, &model.CreateExamRequest{
		Title:     strings.TrimSpace(req.Title),
		Status:    string(model.ExamStatusDraft),
		Questions: aggregated,
	})
	if err != nil {
		return nil, fmt.Errorf("save generated exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("exam generated")

	return &model.GenerateExamResult{
		ExamID:        exam.ID,
		ExamCode:      exam.Code,
		QuestionCount: len(exam.Questions),
	}, nil
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// buildPreviousSummary lists the stems of the most recent questions so the
// next chunk's prompt can steer the model away from covered topics.
func buildPreviousSummary(questions []model.QuestionInput) []string {
	if len(questions) == 0 {
		return nil
	}

	start := len(questions) - previousSummaryLimit
	if start < 0 {
		start = 0
	}

	summary := make([]string, 0, len(questions)-start)
	for _, q := range questions[start:] {
		clean := strings.TrimSpace(whitespaceRE.ReplaceAllString(q.Content, " "))
		if runes := []rune(clean); len(runes) > summaryMaxChars {
			clean = string(runes[:summaryMaxChars]) + "..."
		}
		summary = append(summary, clean)
	}
	return summary
}
