package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerMap maps a question id (string form) to the selected option index.
// Keys are strings because the map round-trips through JSON storage.
type AnswerMap map[string]int

// ExamSession represents one timed attempt by one user at one exam.
// EndTime is computed once at creation and never changes.
type ExamSession struct {
	ID          uuid.UUID `json:"id"`
	ExamID      uuid.UUID `json:"exam_id"`
	UserID      uuid.UUID `json:"user_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Answers     AnswerMap `json:"answers"`
	IsSubmitted bool      `json:"is_submitted"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AutosaveRequest replaces the session's in-progress answers wholesale.
type AutosaveRequest struct {
	Answers AnswerMap `json:"answers" binding:"required"`
}

// SubmitRequest optionally carries a final answer map; when absent the last
// autosaved answers are graded.
type SubmitRequest struct {
	Answers AnswerMap `json:"answers"`
}

// SessionState is the attempt view returned to its owner: current answers plus
// the answer-key-stripped exam snapshot.
type SessionState struct {
	SessionID   uuid.UUID    `json:"session_id"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     time.Time    `json:"end_time"`
	Answers     AnswerMap    `json:"answers"`
	IsSubmitted bool         `json:"is_submitted"`
	Exam        *ExamPayload `json:"exam"`
}

// HeartbeatState carries server-authoritative timing so client clocks never
// decide correctness.
type HeartbeatState struct {
	ServerTime           time.Time `json:"server_time"`
	EndTime              time.Time `json:"end_time"`
	TimeRemainingSeconds int64     `json:"time_remaining_seconds"`
	IsExpired            bool      `json:"is_expired"`
	IsSubmitted          bool      `json:"is_submitted"`
}

// AttemptHistoryEntry is one row of a caller's attempt history for an exam,
// annotated with the submission result when one exists.
type AttemptHistoryEntry struct {
	SessionID   uuid.UUID  `json:"session_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	IsSubmitted bool       `json:"is_submitted"`
	Score       *float64   `json:"score"`
	TimeSpent   *int       `json:"time_spent"`
	SubmittedAt *time.Time `json:"submitted_at"`
}
