// Package scoring grades a candidate's answers against an exam's answer key.
// Scoring is a pure function: identical inputs always produce identical
// output, so a stored score can be recomputed for audit at any time.
package scoring

import "math"

// KeyedQuestion is the minimal view of a question needed for grading.
type KeyedQuestion struct {
	ID         string
	CorrectIdx int
}

// Result is the outcome of grading one answer map.
type Result struct {
	Score        float64 `json:"score"`
	CorrectCount int     `json:"correct_count"`
	Total        int     `json:"total"`
	Percentage   float64 `json:"percentage"`
	PerQuestion  []bool  `json:"per_question_correct"`
}

// Score grades answers against the key. Unanswered questions count as
// incorrect, never as excluded: Total is always len(questions). An exam with
// no questions scores 0, not NaN. PerQuestion is ordered parallel to the
// questions slice.
func Score(questions []KeyedQuestion, answers map[string]int) Result {
	total := len(questions)
	perQuestion := make([]bool, 0, total)
	correctCount := 0

	for _, q := range questions {
		selected, answered := answers[q.ID]
		correct := answered && selected == q.CorrectIdx
		perQuestion = append(perQuestion, correct)
		if correct {
			correctCount++
		}
	}

	score := 0.0
	if total > 0 {
		score = float64(correctCount) / float64(total) * 100
	}

	return Result{
		Score:        score,
		CorrectCount: correctCount,
		Total:        total,
		Percentage:   math.Round(score*100) / 100,
		PerQuestion:  perQuestion,
	}
}
