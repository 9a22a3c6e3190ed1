package scoring

import (
	"reflect"
	"testing"
)

func keyed(correct ...int) []KeyedQuestion {
	qs := make([]KeyedQuestion, len(correct))
	for i, c := range correct {
		qs[i] = KeyedQuestion{ID: questionID(i), CorrectIdx: c}
	}
	return qs
}

func questionID(i int) string {
	return string(rune('a' + i))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name         string
		questions    []KeyedQuestion
		answers      map[string]int
		score        float64
		correctCount int
		total        int
		percentage   float64
		perQuestion  []bool
	}{
		{
			name:         "all correct",
			questions:    keyed(1, 0, 2, 3),
			answers:      map[string]int{"a": 1, "b": 0, "c": 2, "d": 3},
			score:        100, correctCount: 4, total: 4, percentage: 100,
			perQuestion: []bool{true, true, true, true},
		},
		{
			name:         "three of four",
			questions:    keyed(1, 0, 2, 3),
			answers:      map[string]int{"a": 1, "b": 1, "c": 2, "d": 3},
			score:        75, correctCount: 3, total: 4, percentage: 75,
			perQuestion: []bool{true, false, true, true},
		},
		{
			name:         "all wrong or absent",
			questions:    keyed(1, 0, 2, 3),
			answers:      map[string]int{"a": 0, "c": 3},
			score:        0, correctCount: 0, total: 4, percentage: 0,
			perQuestion: []bool{false, false, false, false},
		},
		{
			name:         "no answers at all",
			questions:    keyed(0, 1),
			answers:      map[string]int{},
			score:        0, correctCount: 0, total: 2, percentage: 0,
			perQuestion: []bool{false, false},
		},
		{
			name:         "nil answer map",
			questions:    keyed(2),
			answers:      nil,
			score:        0, correctCount: 0, total: 1, percentage: 0,
			perQuestion: []bool{false},
		},
		{
			name:         "empty exam scores zero not NaN",
			questions:    nil,
			answers:      map[string]int{},
			score:        0, correctCount: 0, total: 0, percentage: 0,
			perQuestion: []bool{},
		},
		{
			name:         "skipped question never shrinks total",
			questions:    keyed(0, 1, 2),
			answers:      map[string]int{"a": 0},
			score:        float64(1) / float64(3) * 100, correctCount: 1, total: 3, percentage: 33.33,
			perQuestion: []bool{true, false, false},
		},
		{
			name:         "answer for unknown question is ignored",
			questions:    keyed(0),
			answers:      map[string]int{"a": 0, "zz": 3},
			score:        100, correctCount: 1, total: 1, percentage: 100,
			perQuestion: []bool{true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.questions, tc.answers)
			if got.Score != tc.score {
				t.Errorf("score: expected %v, got %v", tc.score, got.Score)
			}
			if got.CorrectCount != tc.correctCount {
				t.Errorf("correct count: expected %d, got %d", tc.correctCount, got.CorrectCount)
			}
			if got.Total != tc.total {
				t.Errorf("total: expected %d, got %d", tc.total, got.Total)
			}
			if got.Percentage != tc.percentage {
				t.Errorf("percentage: expected %v, got %v", tc.percentage, got.Percentage)
			}
			if !reflect.DeepEqual(got.PerQuestion, tc.perQuestion) {
				t.Errorf("per-question: expected %v, got %v", tc.perQuestion, got.PerQuestion)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	questions := keyed(1, 0, 2, 3)
	answers := map[string]int{"a": 1, "b": 1, "c": 2, "d": 3}

	first := Score(questions, answers)
	for i := 0; i < 10; i++ {
		if got := Score(questions, answers); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differed: expected %+v, got %+v", i, first, got)
		}
	}
}

func TestScoreDoesNotMutateInputs(t *testing.T) {
	questions := keyed(1, 2)
	answers := map[string]int{"a": 1}

	Score(questions, answers)

	if questions[0].CorrectIdx != 1 || questions[1].CorrectIdx != 2 {
		t.Fatal("questions slice was mutated")
	}
	if len(answers) != 1 || answers["a"] != 1 {
		t.Fatal("answer map was mutated")
	}
}

func TestScorePercentageRounding(t *testing.T) {
	// 1/3 correct: score is repeating, percentage rounds to 2 decimals.
	got := Score(keyed(0, 0, 0), map[string]int{"a": 0})
	if got.Percentage != 33.33 {
		t.Fatalf("expected 33.33, got %v", got.Percentage)
	}
	// 2/3 correct rounds up.
	got = Score(keyed(0, 0, 0), map[string]int{"a": 0, "b": 0})
	if got.Percentage != 66.67 {
		t.Fatalf("expected 66.67, got %v", got.Percentage)
	}
}
