package repository

import (
	"context"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new exam session with an empty answer map.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	if s.Answers == nil {
		s.Answers = model.AnswerMap{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, user_id, start_time, end_time, answers)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, updated_at`,
		s.ExamID, s.UserID, s.StartTime, s.EndTime, s.Answers,
	).Scan(&s.ID, &s.UpdatedAt)
}

// GetByID retrieves an exam session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, start_time, end_time, answers, is_submitted, updated_at
		 FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ExamID, &s.UserID, &s.StartTime, &s.EndTime,
		&s.Answers, &s.IsSubmitted, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateAnswers overwrites a session's saved answer map. The guard on
// is_submitted ensures a finalized session can never be written again.
func (r *SessionRepository) UpdateAnswers(ctx context.Context, id uuid.UUID, answers model.AnswerMap) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = $2, updated_at = NOW()
		 WHERE id = $1 AND is_submitted = FALSE`,
		id, answers)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// History lists a user's attempts on an exam, newest first, joined with the
// submission result where one exists.
func (r *SessionRepository) History(ctx context.Context, examID, userID uuid.UUID) ([]model.AttemptHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, es.start_time, es.end_time, es.is_submitted,
		        sub.score, sub.time_spent, sub.submitted_at
		 FROM exam_sessions es
		 LEFT JOIN submissions sub ON sub.session_id = es.id
		 WHERE es.exam_id = $1 AND es.user_id = $2
		 ORDER BY es.start_time DESC`,
		examID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.AttemptHistoryEntry{}
	for rows.Next() {
		var e model.AttemptHistoryEntry
		if err := rows.Scan(&e.SessionID, &e.StartTime, &e.EndTime, &e.IsSubmitted,
			&e.Score, &e.TimeSpent, &e.SubmittedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
