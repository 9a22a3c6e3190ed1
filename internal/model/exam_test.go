package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseExamRef(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		raw      string
		wantKind ExamRefKind
		wantCode string
		wantErr  error
	}{
		{name: "uuid", raw: id.String(), wantKind: ExamRefID},
		{name: "code", raw: "ABC234", wantKind: ExamRefCode, wantCode: "ABC234"},
		{name: "lowercase code is normalized", raw: "abc234", wantKind: ExamRefCode, wantCode: "ABC234"},
		{name: "surrounding whitespace", raw: "  abc234 ", wantKind: ExamRefCode, wantCode: "ABC234"},
		{name: "empty", raw: "", wantErr: ErrEmptyExamRef},
		{name: "whitespace only", raw: "   ", wantErr: ErrEmptyExamRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseExamRef(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", ref.Kind, tt.wantKind)
			}
			if tt.wantKind == ExamRefID && ref.ID != id {
				t.Errorf("id = %s, want %s", ref.ID, id)
			}
			if ref.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", ref.Code, tt.wantCode)
			}
		})
	}
}
