package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionService serves the author-facing results view.
type SubmissionService struct {
	exams       *repository.ExamRepository
	submissions *repository.SubmissionRepository
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(exams *repository.ExamRepository, submissions *repository.SubmissionRepository) *SubmissionService {
	return &SubmissionService{exams: exams, submissions: submissions}
}

// ListForExam returns all submissions on an exam, newest first. Author only.
func (s *SubmissionService) ListForExam(ctx context.Context, ref model.ExamRef, authorID uuid.UUID) ([]model.SubmissionRow, error) {
	exam, err := s.exams.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}

	return s.submissions.ListByExam(ctx, exam.ID)
}
