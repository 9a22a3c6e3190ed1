package model

import "github.com/google/uuid"

// GenerateExamRequest is the payload for AI question generation. The document
// text is pasted in directly; large documents are fine, generation is chunked
// server-side.
type GenerateExamRequest struct {
	Title        string `json:"title" binding:"required,min=1,max=255"`
	Document     string `json:"document" binding:"required,min=1"`
	NumQuestions int    `json:"num_questions" binding:"omitempty,min=1,max=150"`
	Language     string `json:"language" binding:"omitempty,max=50"`
	Difficulty   string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

// GenerateExamResult reports the draft exam created from generated questions.
type GenerateExamResult struct {
	ExamID        uuid.UUID `json:"exam_id"`
	ExamCode      string    `json:"exam_code"`
	QuestionCount int       `json:"question_count"`
}
