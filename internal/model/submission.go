package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission is the immutable graded record created exactly once per session.
type Submission struct {
	ID          uuid.UUID `json:"id"`
	ExamID      uuid.UUID `json:"exam_id"`
	UserID      uuid.UUID `json:"user_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Answers     AnswerMap `json:"answers"`
	Score       float64   `json:"score"`
	TimeSpent   int       `json:"time_spent"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitResult is returned by the submit operation.
type SubmitResult struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	SessionID    uuid.UUID `json:"session_id"`
	Score        float64   `json:"score"`
	CorrectCount int       `json:"correct_count"`
	Total        int       `json:"total"`
	Percentage   float64   `json:"percentage"`
	TimeSpent    int       `json:"time_spent"`
	IsExpired    bool      `json:"is_expired"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// GradedQuestion is one question in the post-submission review view, with the
// answer key and explanation revealed.
type GradedQuestion struct {
	ID          uuid.UUID `json:"id"`
	Content     string    `json:"content"`
	Options     []string  `json:"options"`
	CorrectIdx  int       `json:"correct_idx"`
	Explanation string    `json:"explanation"`
	SelectedIdx *int      `json:"selected_idx"`
	IsCorrect   bool      `json:"is_correct"`
}

// SubmissionRow is one entry in the author's per-exam results table.
type SubmissionRow struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	UserID      uuid.UUID `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	Score       float64   `json:"score"`
	TimeSpent   int       `json:"time_spent"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmissionView is the full graded record shown on the result page.
type SubmissionView struct {
	Submission
	ExamCode     string           `json:"exam_code"`
	ExamTitle    string           `json:"exam_title"`
	CorrectCount int              `json:"correct_count"`
	Total        int              `json:"total"`
	Percentage   float64          `json:"percentage"`
	Questions    []GradedQuestion `json:"questions"`
}
