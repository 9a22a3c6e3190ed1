package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Common session errors.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotSessionOwner       = errors.New("not the owner of this session")
	ErrAlreadySubmitted      = errors.New("session has already been submitted")
	ErrSessionExpired        = errors.New("session time has expired")
	ErrExamNotAvailable      = errors.New("exam is not open for taking")
	ErrDurationNotConfigured = errors.New("exam has no time limit configured")
	ErrSubmissionNotFound    = errors.New("submission not found")
)

// ExamStore is the slice of exam persistence SessionService needs.
type ExamStore interface {
	Resolve(ctx context.Context, ref model.ExamRef) (*model.Exam, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionStore loads the full question set, answer key included.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// SessionStore persists exam sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.AnswerMap) error
	History(ctx context.Context, examID, userID uuid.UUID) ([]model.AttemptHistoryEntry, error)
}

// SubmissionStore persists graded submissions.
type SubmissionStore interface {
	Finalize(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error)
}

// PayloadProvider serves the taker-facing exam snapshot.
type PayloadProvider interface {
	GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error)
}

// SessionService runs timed exam attempts: opening, autosave, heartbeat and
// the single-fire submit. Expiry is lazy: nothing fires when the clock runs
// out, the deadline is simply enforced on the next write.
type SessionService struct {
	exams       ExamStore
	questions   QuestionStore
	sessions    SessionStore
	submissions SubmissionStore
	payloads    PayloadProvider
	now         func() time.Time
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(exams ExamStore, questions QuestionStore, sessions SessionStore, submissions SubmissionStore, payloads PayloadProvider) *SessionService {
	return &SessionService{
		exams:       exams,
		questions:   questions,
		sessions:    sessions,
		submissions: submissions,
		payloads:    payloads,
		now:         time.Now,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// CreateSession opens a timed attempt on a published exam. Every call inserts
// a fresh session; a user may hold multiple concurrent attempts on the same
// exam, each with its own independent deadline fixed at start + duration.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, ref model.ExamRef) (*model.SessionState, error) {
	exam, err := s.exams.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}
	if exam.DurationMinutes == nil {
		return nil, ErrDurationNotConfigured
	}

	now := s.now()
	session := &model.ExamSession{
		ExamID:    exam.ID,
		UserID:    userID,
		StartTime: now,
		EndTime:   now.Add(time.Duration(*exam.DurationMinutes) * time.Minute),
		Answers:   model.AnswerMap{},
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", exam.ID.String()).
		Time("end_time", session.EndTime).
		Msg("session opened")

	return s.stateFor(ctx, session)
}

// GetSessionState returns the full attempt state for the session owner,
// including the taker-facing exam payload for page reload recovery.
func (s *SessionService) GetSessionState(ctx context.Context, userID, sessionID uuid.UUID) (*model.SessionState, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.stateFor(ctx, session)
}

// Heartbeat reports the server-clock view of a session's remaining time.
// Remaining time never goes below zero, and expiry is derived from it, so the
// pair stays consistent: zero seconds left always reads as expired.
func (s *SessionService) Heartbeat(ctx context.Context, userID, sessionID uuid.UUID) (*model.HeartbeatState, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	remaining := session.EndTime.Sub(now) / time.Second
	if remaining < 0 {
		remaining = 0
	}

	return &model.HeartbeatState{
		ServerTime:           now,
		EndTime:              session.EndTime,
		TimeRemainingSeconds: int64(remaining),
		IsExpired:            remaining <= 0,
		IsSubmitted:          session.IsSubmitted,
	}, nil
}

// AutoSaveAnswers overwrites the session's saved answers. Writes are rejected
// once the session is submitted or its deadline has passed.
func (s *SessionService) AutoSaveAnswers(ctx context.Context, userID, sessionID uuid.UUID, answers model.AnswerMap) error {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if session.IsSubmitted {
		return ErrAlreadySubmitted
	}
	if s.now().After(session.EndTime) {
		return ErrSessionExpired
	}
	if answers == nil {
		answers = model.AnswerMap{}
	}

	if err := s.sessions.UpdateAnswers(ctx, sessionID, answers); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Submitted by a concurrent request between our read and this write.
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// Submit grades the attempt and finalizes it exactly once. Late submits are
// accepted so a taker who ran out of time still gets their saved work graded;
// time spent runs from session start to the submit call, even past the
// deadline, so the record shows real elapsed time.
func (s *SessionService) Submit(ctx context.Context, userID, sessionID uuid.UUID, answers model.AnswerMap) (*model.SubmitResult, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsSubmitted {
		return nil, ErrAlreadySubmitted
	}

	// Final answers from the request win; fall back to the autosaved set.
	if answers == nil {
		answers = session.Answers
	}
	if answers == nil {
		answers = model.AnswerMap{}
	}

	questions, err := s.questions.ListByExam(ctx, session.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	keyed := make([]scoring.KeyedQuestion, len(questions))
	for i, q := range questions {
		keyed[i] = scoring.KeyedQuestion{ID: q.ID.String(), CorrectIdx: q.CorrectIdx}
	}
	result := scoring.Score(keyed, answers)

	now := s.now()
	isExpired := now.After(session.EndTime)
	spent := now.Sub(session.StartTime)
	if spent < 0 {
		spent = 0
	}

	sub := &model.Submission{
		ExamID:    session.ExamID,
		UserID:    session.UserID,
		SessionID: session.ID,
		Answers:   answers,
		Score:     result.Score,
		TimeSpent: int(spent / time.Second),
	}
	if err := s.submissions.Finalize(ctx, sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against a concurrent submit.
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("finalize submission: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Float64("score", result.Score).
		Bool("expired", isExpired).
		Msg("session submitted")

	return &model.SubmitResult{
		SubmissionID: sub.ID,
		SessionID:    session.ID,
		Score:        result.Score,
		CorrectCount: result.CorrectCount,
		Total:        result.Total,
		Percentage:   result.Percentage,
		TimeSpent:    sub.TimeSpent,
		IsExpired:    isExpired,
		SubmittedAt:  sub.SubmittedAt,
	}, nil
}

// History lists the user's attempts on an exam, newest first.
func (s *SessionService) History(ctx context.Context, userID uuid.UUID, ref model.ExamRef) ([]model.AttemptHistoryEntry, error) {
	exam, err := s.exams.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}
	return s.sessions.History(ctx, exam.ID, userID)
}

// GetResult returns the graded review view for a submitted session, with the
// answer key and explanations revealed.
func (s *SessionService) GetResult(ctx context.Context, userID, sessionID uuid.UUID) (*model.SubmissionView, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	sub, err := s.submissions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return s.submissionView(ctx, sub)
}

// GetSubmission returns the graded review view looked up by submission id,
// scoped to the submitting user.
func (s *SessionService) GetSubmission(ctx context.Context, userID, submissionID uuid.UUID) (*model.SubmissionView, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if sub.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return s.submissionView(ctx, sub)
}

func (s *SessionService) submissionView(ctx context.Context, sub *model.Submission) (*model.SubmissionView, error) {
	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	questions, err := s.questions.ListByExam(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	graded := make([]model.GradedQuestion, len(questions))
	correct := 0
	for i, q := range questions {
		g := model.GradedQuestion{
			ID:          q.ID,
			Content:     q.Content,
			Options:     q.Options,
			CorrectIdx:  q.CorrectIdx,
			Explanation: q.Explanation,
		}
		if selected, ok := sub.Answers[q.ID.String()]; ok {
			sel := selected
			g.SelectedIdx = &sel
			g.IsCorrect = selected == q.CorrectIdx
		}
		if g.IsCorrect {
			correct++
		}
		graded[i] = g
	}

	view := &model.SubmissionView{
		Submission:   *sub,
		ExamCode:     exam.Code,
		ExamTitle:    exam.Title,
		CorrectCount: correct,
		Total:        len(questions),
		Percentage:   math.Round(sub.Score*100) / 100,
		Questions:    graded,
	}
	return view, nil
}

func (s *SessionService) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

func (s *SessionService) stateFor(ctx context.Context, session *model.ExamSession) (*model.SessionState, error) {
	payload, err := s.payloads.GetExamPayload(ctx, session.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam payload: %w", err)
	}
	return &model.SessionState{
		SessionID:   session.ID,
		StartTime:   session.StartTime,
		EndTime:     session.EndTime,
		Answers:     session.Answers,
		IsSubmitted: session.IsSubmitted,
		Exam:        payload,
	}, nil
}
