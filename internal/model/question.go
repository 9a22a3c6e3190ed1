package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// Question represents a single multiple-choice question. Options always holds
// exactly OptionCount entries; CorrectIdx indexes into it.
type Question struct {
	ID          uuid.UUID `json:"id"`
	ExamID      uuid.UUID `json:"exam_id"`
	Content     string    `json:"content"`
	Options     []string  `json:"options"`
	CorrectIdx  int       `json:"correct_idx"`
	Explanation string    `json:"explanation"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}
