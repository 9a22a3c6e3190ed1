package service

import (
	"strings"
	"testing"

	"github.com/examroom/examroom-backend/internal/model"
)

func validQuestion() model.QuestionInput {
	return model.QuestionInput{
		Content:    "What is the capital of France?",
		Options:    []string{"Paris", "London", "Berlin", "Madrid"},
		CorrectIdx: 0,
	}
}

func TestValidateQuestions(t *testing.T) {
	tests := []struct {
		name      string
		questions []model.QuestionInput
		want      []string
	}{
		{
			name:      "empty batch is valid",
			questions: []model.QuestionInput{},
			want:      nil,
		},
		{
			name:      "valid question passes",
			questions: []model.QuestionInput{validQuestion()},
			want:      nil,
		},
		{
			name: "blank content",
			questions: []model.QuestionInput{
				{Content: "   ", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 1},
			},
			want: []string{"question #1: content must not be empty"},
		},
		{
			name: "wrong option count",
			questions: []model.QuestionInput{
				{Content: "q", Options: []string{"a", "b"}, CorrectIdx: 0},
			},
			want: []string{"question #1: exactly 4 options are required, got 2"},
		},
		{
			name: "blank option",
			questions: []model.QuestionInput{
				{Content: "q", Options: []string{"a", "", "c", "d"}, CorrectIdx: 0},
			},
			want: []string{"question #1: option 2 must not be empty"},
		},
		{
			name: "correct index out of range",
			questions: []model.QuestionInput{
				{Content: "q", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 4},
			},
			want: []string{"question #1: correct_idx must be between 0 and 3"},
		},
		{
			name: "negative correct index",
			questions: []model.QuestionInput{
				{Content: "q", Options: []string{"a", "b", "c", "d"}, CorrectIdx: -1},
			},
			want: []string{"question #1: correct_idx must be between 0 and 3"},
		},
		{
			name: "problems are collected across the whole batch",
			questions: []model.QuestionInput{
				{Content: "", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 0},
				validQuestion(),
				{Content: "q", Options: []string{"a"}, CorrectIdx: 9},
			},
			want: []string{
				"question #1: content must not be empty",
				"question #3: exactly 4 options are required, got 1",
				"question #3: correct_idx must be between 0 and 3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateQuestions(tt.questions)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d problems %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("problem %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateQuestionsMessageNumbering(t *testing.T) {
	batch := make([]model.QuestionInput, 12)
	for i := range batch {
		batch[i] = validQuestion()
	}
	batch[11].Content = ""

	got := ValidateQuestions(batch)
	if len(got) != 1 || !strings.HasPrefix(got[0], "question #12:") {
		t.Fatalf("expected a single problem for question #12, got %q", got)
	}
}
