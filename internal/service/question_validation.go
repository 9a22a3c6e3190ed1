package service

import (
	"fmt"
	"strings"

	"github.com/examroom/examroom-backend/internal/model"
)

// ValidateQuestions checks a batch of author-supplied questions and collects
// every problem instead of stopping at the first, so the author can fix a
// whole import in one round trip. Questions are numbered from 1 in messages.
func ValidateQuestions(questions []model.QuestionInput) []string {
	problems := []string{}

	for i, q := range questions {
		n := i + 1

		if strings.TrimSpace(q.Content) == "" {
			problems = append(problems, fmt.Sprintf("question #%d: content must not be empty", n))
		}

		if len(q.Options) != model.OptionCount {
			problems = append(problems, fmt.Sprintf("question #%d: exactly %d options are required, got %d",
				n, model.OptionCount, len(q.Options)))
		} else {
			for j, opt := range q.Options {
				if strings.TrimSpace(opt) == "" {
					problems = append(problems, fmt.Sprintf("question #%d: option %d must not be empty", n, j+1))
				}
			}
		}

		if q.CorrectIdx < 0 || q.CorrectIdx >= model.OptionCount {
			problems = append(problems, fmt.Sprintf("question #%d: correct_idx must be between 0 and %d",
				n, model.OptionCount-1))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}
