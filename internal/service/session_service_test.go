package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeStore is an in-memory implementation of every store SessionService
// depends on. Not-found lookups return pgx.ErrNoRows, like the real
// repositories do.
type fakeStore struct {
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	sessions  map[uuid.UUID]*model.ExamSession
	subs      map[uuid.UUID]*model.Submission
	now       func() time.Time
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		exams:     map[uuid.UUID]*model.Exam{},
		questions: map[uuid.UUID][]model.Question{},
		sessions:  map[uuid.UUID]*model.ExamSession{},
		subs:      map[uuid.UUID]*model.Submission{},
		now:       now,
	}
}

func (f *fakeStore) Resolve(_ context.Context, ref model.ExamRef) (*model.Exam, error) {
	for _, e := range f.exams {
		if (ref.Kind == model.ExamRefID && e.ID == ref.ID) ||
			(ref.Kind == model.ExamRefCode && e.Code == ref.Code) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (f *fakeStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return f.questions[examID], nil
}

func (f *fakeStore) Create(_ context.Context, s *model.ExamSession) error {
	s.ID = uuid.New()
	s.UpdatedAt = f.now()
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeStore) sessionByID(id uuid.UUID) (*model.ExamSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) UpdateAnswers(_ context.Context, id uuid.UUID, answers model.AnswerMap) error {
	s, ok := f.sessions[id]
	if !ok || s.IsSubmitted {
		return pgx.ErrNoRows
	}
	s.Answers = answers
	s.UpdatedAt = f.now()
	return nil
}

func (f *fakeStore) History(_ context.Context, examID, userID uuid.UUID) ([]model.AttemptHistoryEntry, error) {
	entries := []model.AttemptHistoryEntry{}
	for _, s := range f.sessions {
		if s.ExamID != examID || s.UserID != userID {
			continue
		}
		e := model.AttemptHistoryEntry{
			SessionID:   s.ID,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			IsSubmitted: s.IsSubmitted,
		}
		if sub, ok := f.subs[s.ID]; ok {
			score, spent, at := sub.Score, sub.TimeSpent, sub.SubmittedAt
			e.Score, e.TimeSpent, e.SubmittedAt = &score, &spent, &at
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeStore) Finalize(_ context.Context, sub *model.Submission) error {
	s, ok := f.sessions[sub.SessionID]
	if !ok || s.IsSubmitted {
		return pgx.ErrNoRows
	}
	s.IsSubmitted = true
	s.Answers = sub.Answers
	sub.ID = uuid.New()
	sub.SubmittedAt = f.now()
	copied := *sub
	f.subs[sub.SessionID] = &copied
	return nil
}

func (f *fakeStore) GetBySessionID(_ context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	sub, ok := f.subs[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeStore) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	exam, err := f.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions := f.questions[examID]
	taker := make([]model.QuestionForTaker, len(questions))
	for i, q := range questions {
		taker[i] = model.QuestionForTaker{ID: q.ID, Content: q.Content, Options: q.Options}
	}
	return &model.ExamPayload{
		ID:              exam.ID,
		Code:            exam.Code,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		Questions:       taker,
	}, nil
}

// sessionStoreAdapter maps the fake's session GetByID onto the SessionStore
// interface without colliding with the exam GetByID method.
type sessionStoreAdapter struct{ *fakeStore }

func (a sessionStoreAdapter) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := a.sessionByID(id)
	if err != nil {
		return nil, err
	}
	copied := *s
	return &copied, nil
}

// submissionStoreAdapter does the same for submission lookups by id.
type submissionStoreAdapter struct{ *fakeStore }

func (a submissionStoreAdapter) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	for _, sub := range a.subs {
		if sub.ID == id {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fixture struct {
	svc    *SessionService
	store  *fakeStore
	clock  *time.Time
	exam   *model.Exam
	userID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &start
	now := func() time.Time { return *clock }

	store := newFakeStore(now)

	duration := 30
	exam := &model.Exam{
		ID:              uuid.New(),
		Code:            "GOEXAM",
		Title:           "Go Fundamentals",
		Status:          model.ExamStatusPublished,
		DurationMinutes: &duration,
		AuthorID:        uuid.New(),
	}
	store.exams[exam.ID] = exam

	q1, q2, q3, q4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	store.questions[exam.ID] = []model.Question{
		{ID: q1, ExamID: exam.ID, Content: "q1", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 1, Position: 0},
		{ID: q2, ExamID: exam.ID, Content: "q2", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 0, Position: 1},
		{ID: q3, ExamID: exam.ID, Content: "q3", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 2, Position: 2},
		{ID: q4, ExamID: exam.ID, Content: "q4", Options: []string{"a", "b", "c", "d"}, CorrectIdx: 3, Position: 3},
	}

	svc := NewSessionService(store, store, sessionStoreAdapter{store}, submissionStoreAdapter{store}, store)
	svc.now = now

	return &fixture{svc: svc, store: store, clock: clock, exam: exam, userID: uuid.New()}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) ref() model.ExamRef {
	return model.ExamRef{Kind: model.ExamRefID, ID: f.exam.ID}
}

func (f *fixture) open(t *testing.T) *model.SessionState {
	t.Helper()
	state, err := f.svc.CreateSession(context.Background(), f.userID, f.ref())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return state
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	state := f.open(t)

	wantEnd := f.clock.Add(30 * time.Minute)
	if !state.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime = %v, want %v", state.EndTime, wantEnd)
	}
	if state.Exam == nil || len(state.Exam.Questions) != 4 {
		t.Fatalf("expected payload with 4 questions, got %+v", state.Exam)
	}
	for _, q := range f.store.questions[f.exam.ID] {
		for _, tq := range state.Exam.Questions {
			if tq.ID == q.ID && len(tq.Options) != 4 {
				t.Errorf("question %s payload lost options", q.ID)
			}
		}
	}
}

func TestCreateSessionByCode(t *testing.T) {
	f := newFixture(t)

	state, err := f.svc.CreateSession(context.Background(), f.userID,
		model.ExamRef{Kind: model.ExamRefCode, Code: "GOEXAM"})
	if err != nil {
		t.Fatalf("CreateSession by code: %v", err)
	}
	if state.Exam.ID != f.exam.ID {
		t.Errorf("resolved exam %s, want %s", state.Exam.ID, f.exam.ID)
	}
}

func TestCreateSessionOpensIndependentAttempts(t *testing.T) {
	f := newFixture(t)

	first := f.open(t)
	f.advance(5 * time.Minute)
	second := f.open(t)

	if first.SessionID == second.SessionID {
		t.Fatalf("every call must insert a new session, got %s twice", first.SessionID)
	}
	wantEnd := f.clock.Add(30 * time.Minute)
	if !second.EndTime.Equal(wantEnd) {
		t.Errorf("second attempt EndTime = %v, want its own deadline %v", second.EndTime, wantEnd)
	}
	if second.EndTime.Equal(first.EndTime) {
		t.Error("concurrent attempts must not share a deadline")
	}
}

func TestCreateSessionRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
		ref     func(f *fixture) model.ExamRef
		wantErr error
	}{
		{
			name:    "unknown exam",
			prepare: func(f *fixture) {},
			ref: func(f *fixture) model.ExamRef {
				return model.ExamRef{Kind: model.ExamRefCode, Code: "NOPE"}
			},
			wantErr: ErrExamNotFound,
		},
		{
			name:    "draft exam",
			prepare: func(f *fixture) { f.exam.Status = model.ExamStatusDraft },
			ref:     (*fixture).ref,
			wantErr: ErrExamNotAvailable,
		},
		{
			name:    "ended exam",
			prepare: func(f *fixture) { f.exam.Status = model.ExamStatusEnded },
			ref:     (*fixture).ref,
			wantErr: ErrExamNotAvailable,
		},
		{
			name:    "no duration configured",
			prepare: func(f *fixture) { f.exam.DurationMinutes = nil },
			ref:     (*fixture).ref,
			wantErr: ErrDurationNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.prepare(f)
			_, err := f.svc.CreateSession(context.Background(), f.userID, tt.ref(f))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	f.advance(10 * time.Minute)
	hb, err := f.svc.Heartbeat(context.Background(), f.userID, state.SessionID)
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if hb.TimeRemainingSeconds != 20*60 {
		t.Errorf("TimeRemainingSeconds = %d, want %d", hb.TimeRemainingSeconds, 20*60)
	}
	if hb.IsExpired {
		t.Error("IsExpired = true before the deadline")
	}

	// 400ms left: zero whole seconds remain, which must read as expired.
	f.advance(19*time.Minute + 59*time.Second + 600*time.Millisecond)
	hb, err = f.svc.Heartbeat(context.Background(), f.userID, state.SessionID)
	if err != nil {
		t.Fatalf("Heartbeat at boundary: %v", err)
	}
	if hb.TimeRemainingSeconds != 0 {
		t.Errorf("TimeRemainingSeconds = %d, want 0", hb.TimeRemainingSeconds)
	}
	if !hb.IsExpired {
		t.Error("IsExpired must be true whenever zero seconds remain")
	}

	f.advance(25 * time.Minute)
	hb, err = f.svc.Heartbeat(context.Background(), f.userID, state.SessionID)
	if err != nil {
		t.Fatalf("Heartbeat after expiry: %v", err)
	}
	if hb.TimeRemainingSeconds != 0 {
		t.Errorf("remaining time must clamp at zero, got %d", hb.TimeRemainingSeconds)
	}
	if !hb.IsExpired {
		t.Error("IsExpired = false after the deadline")
	}
}

func TestHeartbeatOwnership(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	_, err := f.svc.Heartbeat(context.Background(), uuid.New(), state.SessionID)
	if !errors.Is(err, ErrNotSessionOwner) {
		t.Errorf("err = %v, want ErrNotSessionOwner", err)
	}

	_, err = f.svc.Heartbeat(context.Background(), f.userID, uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestAutoSaveAnswers(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)
	qID := f.store.questions[f.exam.ID][0].ID.String()

	if err := f.svc.AutoSaveAnswers(context.Background(), f.userID, state.SessionID,
		model.AnswerMap{qID: 1}); err != nil {
		t.Fatalf("AutoSaveAnswers: %v", err)
	}

	got, _ := f.svc.GetSessionState(context.Background(), f.userID, state.SessionID)
	if got.Answers[qID] != 1 {
		t.Errorf("saved answers not visible in session state: %+v", got.Answers)
	}

	// Autosave overwrites, not merges.
	other := f.store.questions[f.exam.ID][1].ID.String()
	if err := f.svc.AutoSaveAnswers(context.Background(), f.userID, state.SessionID,
		model.AnswerMap{other: 2}); err != nil {
		t.Fatalf("second AutoSaveAnswers: %v", err)
	}
	got, _ = f.svc.GetSessionState(context.Background(), f.userID, state.SessionID)
	if _, stale := got.Answers[qID]; stale {
		t.Error("autosave must replace the whole answer map")
	}
}

func TestAutoSaveAfterExpiry(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	f.advance(31 * time.Minute)
	err := f.svc.AutoSaveAnswers(context.Background(), f.userID, state.SessionID, model.AnswerMap{})
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)
	questions := f.store.questions[f.exam.ID]

	answers := model.AnswerMap{
		questions[0].ID.String(): questions[0].CorrectIdx,
		questions[1].ID.String(): questions[1].CorrectIdx,
		questions[2].ID.String(): questions[2].CorrectIdx,
		questions[3].ID.String(): 0, // wrong
	}

	f.advance(12 * time.Minute)
	result, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if result.Score != 75 {
		t.Errorf("Score = %v, want 75", result.Score)
	}
	if result.CorrectCount != 3 || result.Total != 4 {
		t.Errorf("CorrectCount/Total = %d/%d, want 3/4", result.CorrectCount, result.Total)
	}
	if result.TimeSpent != 12*60 {
		t.Errorf("TimeSpent = %d, want %d", result.TimeSpent, 12*60)
	}
	if result.IsExpired {
		t.Error("IsExpired = true for an in-time submit")
	}
}

func TestSubmitIsSingleFire(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	if _, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, model.AnswerMap{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, model.AnswerMap{})
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second submit err = %v, want ErrAlreadySubmitted", err)
	}

	if err := f.svc.AutoSaveAnswers(context.Background(), f.userID, state.SessionID, model.AnswerMap{}); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("autosave after submit err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitAfterExpiry(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	f.advance(45 * time.Minute)
	result, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, nil)
	if err != nil {
		t.Fatalf("late submit must still be accepted: %v", err)
	}
	if !result.IsExpired {
		t.Error("IsExpired = false for a late submit")
	}
	if result.TimeSpent != 45*60 {
		t.Errorf("TimeSpent = %d, want the real elapsed time %d", result.TimeSpent, 45*60)
	}
}

func TestSubmitFallsBackToAutosavedAnswers(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)
	questions := f.store.questions[f.exam.ID]

	saved := model.AnswerMap{questions[0].ID.String(): questions[0].CorrectIdx}
	if err := f.svc.AutoSaveAnswers(context.Background(), f.userID, state.SessionID, saved); err != nil {
		t.Fatalf("AutoSaveAnswers: %v", err)
	}

	result, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.CorrectCount != 1 {
		t.Errorf("CorrectCount = %d, want 1 from autosaved answers", result.CorrectCount)
	}
}

func TestGetResult(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)
	questions := f.store.questions[f.exam.ID]

	answers := model.AnswerMap{
		questions[0].ID.String(): questions[0].CorrectIdx,
		questions[1].ID.String(): 3, // wrong
	}
	if _, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, answers); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	view, err := f.svc.GetResult(context.Background(), f.userID, state.SessionID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if view.CorrectCount != 1 || view.Total != 4 {
		t.Errorf("CorrectCount/Total = %d/%d, want 1/4", view.CorrectCount, view.Total)
	}
	if len(view.Questions) != 4 {
		t.Fatalf("expected 4 graded questions, got %d", len(view.Questions))
	}

	first := view.Questions[0]
	if !first.IsCorrect || first.SelectedIdx == nil || *first.SelectedIdx != questions[0].CorrectIdx {
		t.Errorf("graded question 1 = %+v, want correct with selection revealed", first)
	}
	third := view.Questions[2]
	if third.SelectedIdx != nil || third.IsCorrect {
		t.Errorf("unanswered question must be incorrect with nil selection, got %+v", third)
	}
}

func TestGetResultRoundsPercentage(t *testing.T) {
	f := newFixture(t)
	f.store.questions[f.exam.ID] = f.store.questions[f.exam.ID][:3]
	state := f.open(t)
	questions := f.store.questions[f.exam.ID]

	answers := model.AnswerMap{questions[0].ID.String(): questions[0].CorrectIdx}
	if _, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, answers); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	view, err := f.svc.GetResult(context.Background(), f.userID, state.SessionID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if view.Percentage != 33.33 {
		t.Errorf("Percentage = %v, want 33.33", view.Percentage)
	}
}

func TestGetSubmissionByID(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	result, err := f.svc.Submit(context.Background(), f.userID, state.SessionID, model.AnswerMap{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	view, err := f.svc.GetSubmission(context.Background(), f.userID, result.SubmissionID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if view.SessionID != state.SessionID {
		t.Errorf("SessionID = %s, want %s", view.SessionID, state.SessionID)
	}

	if _, err := f.svc.GetSubmission(context.Background(), uuid.New(), result.SubmissionID); !errors.Is(err, ErrNotSessionOwner) {
		t.Errorf("foreign lookup err = %v, want ErrNotSessionOwner", err)
	}
	if _, err := f.svc.GetSubmission(context.Background(), f.userID, uuid.New()); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("unknown id err = %v, want ErrSubmissionNotFound", err)
	}
}

func TestGetResultBeforeSubmit(t *testing.T) {
	f := newFixture(t)
	state := f.open(t)

	_, err := f.svc.GetResult(context.Background(), f.userID, state.SessionID)
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("err = %v, want ErrSubmissionNotFound", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	first := f.open(t)
	if _, err := f.svc.Submit(context.Background(), f.userID, first.SessionID, model.AnswerMap{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.advance(time.Minute)
	second := f.open(t)
	if first.SessionID == second.SessionID {
		t.Fatal("each open must create a distinct attempt")
	}

	entries, err := f.svc.History(context.Background(), f.userID, f.ref())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(entries))
	}

	submitted, open := 0, 0
	for _, e := range entries {
		if e.IsSubmitted {
			submitted++
			if e.Score == nil || e.SubmittedAt == nil {
				t.Errorf("submitted attempt missing result fields: %+v", e)
			}
		} else {
			open++
			if e.Score != nil {
				t.Errorf("open attempt must not carry a score: %+v", e)
			}
		}
	}
	if submitted != 1 || open != 1 {
		t.Errorf("submitted/open = %d/%d, want 1/1", submitted, open)
	}
}
