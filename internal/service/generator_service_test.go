package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/examroom/examroom-backend/internal/llm"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
)

type fakeGenerator struct {
	calls []generatorCall
	fail  bool
	short bool
	bad   bool
}

type generatorCall struct {
	count    int
	previous []string
}

func (g *fakeGenerator) GenerateQuestions(_ context.Context, _ string, count int, _, _ string, previous []string) ([]llm.GeneratedQuestion, error) {
	g.calls = append(g.calls, generatorCall{count: count, previous: previous})
	if g.fail {
		return nil, errors.New("model unavailable")
	}
	if g.short {
		return nil, nil
	}

	n := count
	questions := make([]llm.GeneratedQuestion, n)
	for i := range questions {
		questions[i] = llm.GeneratedQuestion{
			Content:     strings.Repeat("x", 20),
			Options:     []string{"a", "b", "c", "d"},
			CorrectIdx:  i % 4,
			Explanation: "because",
		}
	}
	if g.bad {
		questions[0].Options = []string{"a"}
	}
	return questions, nil
}

type fakeCreator struct {
	created *model.CreateExamRequest
}

func (c *fakeCreator) Create(_ context.Context, _ uuid.UUID, req *model.CreateExamRequest) (*model.ExamWithQuestions, error) {
	c.created = req
	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{ID: uuid.New(), Content: q.Content, Options: q.Options, CorrectIdx: q.CorrectIdx}
	}
	return &model.ExamWithQuestions{
		Exam:      model.Exam{ID: uuid.New(), Code: "GEN123", Title: req.Title, Status: model.ExamStatusDraft},
		Questions: questions,
	}, nil
}

func TestGenerateExamChunking(t *testing.T) {
	gen := &fakeGenerator{}
	creator := &fakeCreator{}
	svc := NewGeneratorService(gen, creator)

	result, err := svc.GenerateExam(context.Background(), uuid.New(), &model.GenerateExamRequest{
		Title:        "Big exam",
		Document:     "doc",
		NumQuestions: 25,
	})
	if err != nil {
		t.Fatalf("GenerateExam: %v", err)
	}

	if len(gen.calls) != 3 {
		t.Fatalf("expected 3 chunks for 25 questions, got %d", len(gen.calls))
	}
	wantCounts := []int{10, 10, 5}
	for i, call := range gen.calls {
		if call.count != wantCounts[i] {
			t.Errorf("chunk %d asked for %d questions, want %d", i+1, call.count, wantCounts[i])
		}
	}

	if len(gen.calls[0].previous) != 0 {
		t.Errorf("first chunk must carry no previous summary, got %d entries", len(gen.calls[0].previous))
	}
	if len(gen.calls[1].previous) != 5 {
		t.Errorf("later chunks carry at most 5 previous stems, got %d", len(gen.calls[1].previous))
	}

	if result.QuestionCount != 25 {
		t.Errorf("QuestionCount = %d, want 25", result.QuestionCount)
	}
	if creator.created == nil || creator.created.Status != string(model.ExamStatusDraft) {
		t.Errorf("generated exam must be saved as a draft, got %+v", creator.created)
	}
}

func TestGenerateExamDefaultsToTenQuestions(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewGeneratorService(gen, &fakeCreator{})

	result, err := svc.GenerateExam(context.Background(), uuid.New(), &model.GenerateExamRequest{
		Title:    "Quick exam",
		Document: "doc",
	})
	if err != nil {
		t.Fatalf("GenerateExam: %v", err)
	}
	if result.QuestionCount != 10 {
		t.Errorf("QuestionCount = %d, want default 10", result.QuestionCount)
	}
}

func TestGenerateExamFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "model error", gen: &fakeGenerator{fail: true}},
		{name: "empty chunk", gen: &fakeGenerator{short: true}},
		{name: "invalid questions", gen: &fakeGenerator{bad: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGeneratorService(tt.gen, &fakeCreator{})
			_, err := svc.GenerateExam(context.Background(), uuid.New(), &model.GenerateExamRequest{
				Title:        "t",
				Document:     "doc",
				NumQuestions: 5,
			})
			if !errors.Is(err, ErrGenerationFailed) {
				t.Errorf("err = %v, want ErrGenerationFailed", err)
			}
		})
	}
}

func TestBuildPreviousSummary(t *testing.T) {
	questions := make([]model.QuestionInput, 8)
	for i := range questions {
		questions[i] = model.QuestionInput{Content: "  question\n with   spaces  "}
	}
	questions[7].Content = strings.Repeat("a", 200)

	summary := buildPreviousSummary(questions)
	if len(summary) != 5 {
		t.Fatalf("summary length = %d, want 5", len(summary))
	}
	if summary[0] != "question with spaces" {
		t.Errorf("whitespace not collapsed: %q", summary[0])
	}
	last := summary[4]
	if len(last) != 163 || !strings.HasSuffix(last, "...") {
		t.Errorf("long stems must be truncated to 160 chars plus ellipsis, got len %d", len(last))
	}

	if buildPreviousSummary(nil) != nil {
		t.Error("empty input must produce nil summary")
	}
}

func TestBuildPreviousSummaryMultibyte(t *testing.T) {
	questions := []model.QuestionInput{
		{Content: strings.Repeat("é", 200)},
	}

	summary := buildPreviousSummary(questions)
	if len(summary) != 1 {
		t.Fatalf("summary length = %d, want 1", len(summary))
	}
	got := summary[0]
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 163 {
		t.Errorf("rune count = %d, want 160 plus ellipsis", n)
	}
}
