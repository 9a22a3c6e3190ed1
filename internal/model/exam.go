package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusEnded     ExamStatus = "ENDED"
)

// NormalizeExamStatus maps a raw string onto a known status, or "" if unknown.
func NormalizeExamStatus(raw string) ExamStatus {
	switch ExamStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ExamStatusDraft:
		return ExamStatusDraft
	case ExamStatusPublished:
		return ExamStatusPublished
	case ExamStatusEnded:
		return ExamStatusEnded
	}
	return ""
}

// Exam represents an exam entity. DurationMinutes is nil when the exam has no
// time limit configured; such exams cannot be taken.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Status          ExamStatus `json:"status"`
	DurationMinutes *int       `json:"duration_minutes"`
	AuthorID        uuid.UUID  `json:"author_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamWithQuestions is the full author-facing aggregate, answer key included.
type ExamWithQuestions struct {
	Exam
	Questions []Question `json:"questions"`
}

// ExamSummary is a catalog row for listing an author's exams.
type ExamSummary struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Status          ExamStatus `json:"status"`
	DurationMinutes *int       `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ─── Exam reference (id or code) ────────────────────────────────────

// ExamRefKind tags how an exam is being identified.
type ExamRefKind string

const (
	ExamRefID   ExamRefKind = "id"
	ExamRefCode ExamRefKind = "code"
)

// ExamRef identifies an exam either by UUID or by its short join code.
// It is resolved once at the HTTP boundary into a single store lookup.
type ExamRef struct {
	Kind ExamRefKind
	ID   uuid.UUID
	Code string
}

// ErrEmptyExamRef is returned when neither an id nor a code was supplied.
var ErrEmptyExamRef = errors.New("exam identifier is required")

// ParseExamRef interprets a path segment as either a UUID or a join code.
func ParseExamRef(raw string) (ExamRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ExamRef{}, ErrEmptyExamRef
	}
	if id, err := uuid.Parse(trimmed); err == nil {
		return ExamRef{Kind: ExamRefID, ID: id}, nil
	}
	return ExamRef{Kind: ExamRefCode, Code: NormalizeExamCode(trimmed)}, nil
}

// NormalizeExamCode canonicalizes a join code for storage and lookup.
func NormalizeExamCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ─── Request payloads ───────────────────────────────────────────────

// QuestionInput is one question as supplied by an exam author. Only the shape
// is bound here; content rules are enforced by the batch question validator so
// the caller receives every problem in one round trip.
type QuestionInput struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Content     string     `json:"content"`
	Options     []string   `json:"options"`
	CorrectIdx  int        `json:"correct_idx"`
	Explanation string     `json:"explanation,omitempty"`
}

// CreateExamRequest is the payload for creating a new exam with questions.
// Code is optional; a random join code is generated when absent.
type CreateExamRequest struct {
	Code            string          `json:"code" binding:"omitempty,min=4,max=12,alphanum"`
	Title           string          `json:"title" binding:"required,min=1,max=255"`
	Status          string          `json:"status" binding:"omitempty"`
	DurationMinutes *int            `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Questions       []QuestionInput `json:"questions" binding:"omitempty"`
}

// UpdateExamRequest is the payload for updating an existing exam.
// A non-nil Questions slice replaces the whole question set ("sync").
type UpdateExamRequest struct {
	Code            *string          `json:"code" binding:"omitempty,min=4,max=12,alphanum"`
	Title           *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Status          *string          `json:"status" binding:"omitempty"`
	DurationMinutes *int             `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	ClearDuration   bool             `json:"clear_duration,omitempty"`
	Questions       *[]QuestionInput `json:"questions,omitempty"`
}

// ─── Taker-facing payload (answer key stripped) ─────────────────────

// QuestionForTaker is a question without correct_idx or explanation,
// as exposed to a candidate during an attempt.
type QuestionForTaker struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
	Options []string  `json:"options"`
}

// ExamPreview is the public join-screen view of a published exam.
type ExamPreview struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	DurationMinutes *int      `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
}

// ExamPayload is the Redis-cached snapshot sent to exam takers.
type ExamPayload struct {
	ID              uuid.UUID          `json:"id"`
	Code            string             `json:"code"`
	Title           string             `json:"title"`
	DurationMinutes *int               `json:"duration_minutes"`
	Questions       []QuestionForTaker `json:"questions"`
}
