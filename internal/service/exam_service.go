package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/repository"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Common exam errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrExamCodeTaken    = errors.New("exam code is already in use")
	ErrInvalidStatus    = errors.New("unknown exam status")
	ErrInvalidQuestions = errors.New("question validation failed")
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// ExamService handles the exam catalog: authoring, lifecycle and the Redis
// fast lane that serves published exam payloads without touching PostgreSQL.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, rdb *redis.Client) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// ValidationError carries the collected per-question problems of a batch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d invalid questions", len(e.Problems))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidQuestions }

// Create validates and persists a new exam with its questions.
func (s *ExamService) Create(ctx context.Context, authorID uuid.UUID, req *model.CreateExamRequest) (*model.ExamWithQuestions, error) {
	status := model.ExamStatusDraft
	if req.Status != "" {
		status = model.NormalizeExamStatus(req.Status)
		if status == "" {
			return nil, ErrInvalidStatus
		}
	}

	if problems := ValidateQuestions(req.Questions); problems != nil {
		return nil, &ValidationError{Problems: problems}
	}

	code := model.NormalizeExamCode(req.Code)
	if code == "" {
		generated, err := s.generateUniqueCode(ctx)
		if err != nil {
			return nil, err
		}
		code = generated
	} else {
		taken, err := s.examRepo.ExistsByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code: %w", err)
		}
		if taken {
			return nil, ErrExamCodeTaken
		}
	}

	exam := &model.Exam{
		Code:            code,
		Title:           req.Title,
		Status:          status,
		DurationMinutes: req.DurationMinutes,
		AuthorID:        authorID,
	}
	if err := s.examRepo.CreateWithQuestions(ctx, exam, req.Questions); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if exam.Status == model.ExamStatusPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("failed to warm cache")
		}
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Str("code", exam.Code).Msg("exam created")
	return s.GetForAuthor(ctx, model.ExamRef{Kind: model.ExamRefID, ID: exam.ID}, authorID)
}

// GetForAuthor retrieves the full exam aggregate, answer key included.
// Only the author may see it.
func (s *ExamService) GetForAuthor(ctx context.Context, ref model.ExamRef, authorID uuid.UUID) (*model.ExamWithQuestions, error) {
	exam, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return &model.ExamWithQuestions{Exam: *exam, Questions: questions}, nil
}

// ListByAuthor retrieves a page of the author's catalog, newest first,
// optionally filtered by status.
func (s *ExamService) ListByAuthor(ctx context.Context, authorID uuid.UUID, statusFilter string, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	var status model.ExamStatus
	if statusFilter != "" {
		status = model.NormalizeExamStatus(statusFilter)
		if status == "" {
			return nil, nil, ErrInvalidStatus
		}
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListByAuthor(ctx, authorID, status, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Update applies partial changes to an exam, synchronizes its question set
// when one is supplied, and keeps the Redis fast lane consistent with the
// new status.
func (s *ExamService) Update(ctx context.Context, ref model.ExamRef, authorID uuid.UUID, req *model.UpdateExamRequest) (*model.ExamWithQuestions, error) {
	exam, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}

	if req.Code != nil {
		code := model.NormalizeExamCode(*req.Code)
		if code != exam.Code {
			taken, err := s.examRepo.ExistsByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("check code: %w", err)
			}
			if taken {
				return nil, ErrExamCodeTaken
			}
			exam.Code = code
		}
	}
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Status != nil {
		status := model.NormalizeExamStatus(*req.Status)
		if status == "" {
			return nil, ErrInvalidStatus
		}
		exam.Status = status
	}
	if req.ClearDuration {
		exam.DurationMinutes = nil
	} else if req.DurationMinutes != nil {
		exam.DurationMinutes = req.DurationMinutes
	}

	if req.Questions != nil {
		if problems := ValidateQuestions(*req.Questions); problems != nil {
			return nil, &ValidationError{Problems: problems}
		}
	}

	if err := s.examRepo.UpdateWithQuestions(ctx, exam, req.Questions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}

	// Keep the fast lane consistent: re-warm published exams, purge the rest.
	if exam.Status == model.ExamStatusPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("failed to warm cache")
		}
	} else {
		s.purgeExamCache(ctx, exam.ID)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Msg("exam updated")
	return s.GetForAuthor(ctx, model.ExamRef{Kind: model.ExamRefID, ID: exam.ID}, authorID)
}

// Delete removes an exam and purges its cached payload.
func (s *ExamService) Delete(ctx context.Context, ref model.ExamRef, authorID uuid.UUID) error {
	exam, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if exam.AuthorID != authorID {
		return ErrNotExamAuthor
	}

	if err := s.examRepo.Delete(ctx, exam.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("delete exam: %w", err)
	}

	s.purgeExamCache(ctx, exam.ID)
	s.log.Info().Str("exam_id", exam.ID.String()).Msg("exam deleted")
	return nil
}

// Resolve finds an exam by id or join code.
func (s *ExamService) Resolve(ctx context.Context, ref model.ExamRef) (*model.Exam, error) {
	return s.resolve(ctx, ref)
}

func (s *ExamService) resolve(ctx context.Context, ref model.ExamRef) (*model.Exam, error) {
	exam, err := s.examRepo.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}
	return exam, nil
}

// WarmExamCache loads an exam's taker payload from PostgreSQL into Redis.
// Used on publish, on post-publish edits, and by PrewarmAllCaches.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	// Taker-facing view: answer key and explanations stripped.
	takerQuestions := make([]model.QuestionForTaker, len(questions))
	for i, q := range questions {
		takerQuestions[i] = model.QuestionForTaker{
			ID:      q.ID,
			Content: q.Content,
			Options: q.Options,
		}
	}

	payload := model.ExamPayload{
		ID:              exam.ID,
		Code:            exam.Code,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		Questions:       takerQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := config.CacheKey.ExamPayloadKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, payloadJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application
// startup, so the first taker never pays the PostgreSQL round trip.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("no published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("prewarming complete")
	return nil
}

// GetExamPayload returns the taker payload for a published exam. Redis is the
// fast lane; on a miss the payload is rebuilt from PostgreSQL and the cache
// self-heals.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.ExamPayload
		if err := json.Unmarshal(data, &payload); err == nil {
			return &payload, nil
		}
		// Corrupt entry: fall through to the rebuild path below.
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("redis read failed, falling back to postgres")
	}

	exam, err := s.resolve(ctx, model.ExamRef{Kind: model.ExamRefID, ID: examID})
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("cache self-heal failed")
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	takerQuestions := make([]model.QuestionForTaker, len(questions))
	for i, q := range questions {
		takerQuestions[i] = model.QuestionForTaker{ID: q.ID, Content: q.Content, Options: q.Options}
	}

	return &model.ExamPayload{
		ID:              exam.ID,
		Code:            exam.Code,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		Questions:       takerQuestions,
	}, nil
}

// Preview returns the public join-screen view of a published exam: title and
// duration only, no questions.
func (s *ExamService) Preview(ctx context.Context, ref model.ExamRef) (*model.ExamPreview, error) {
	exam, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	count, err := s.questionRepo.CountByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	return &model.ExamPreview{
		ID:              exam.ID,
		Code:            exam.Code,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		QuestionCount:   count,
	}, nil
}

func (s *ExamService) purgeExamCache(ctx context.Context, examID uuid.UUID) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("failed to purge cache")
	}
}

func (s *ExamService) generateUniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		taken, err := s.examRepo.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique exam code")
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
