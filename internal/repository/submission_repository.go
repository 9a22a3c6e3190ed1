package repository

import (
	"context"
	"fmt"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Finalize records a submission and marks its session submitted in one
// transaction. The session update is guarded on is_submitted = FALSE, so a
// concurrent second submit loses the race and gets pgx.ErrNoRows back; the
// submission row is rolled back with it.
func (r *SubmissionRepository) Finalize(ctx context.Context, sub *model.Submission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET is_submitted = TRUE, answers = $2, updated_at = NOW()
		 WHERE id = $1 AND is_submitted = FALSE`,
		sub.SessionID, sub.Answers)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, user_id, session_id, answers, score, time_spent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, submitted_at`,
		sub.ExamID, sub.UserID, sub.SessionID, sub.Answers, sub.Score, sub.TimeSpent,
	).Scan(&sub.ID, &sub.SubmittedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a submission by id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, session_id, answers, score, time_spent, submitted_at
		 FROM submissions WHERE id = $1`, id))
}

// GetBySessionID retrieves the submission recorded for a session, if any.
func (r *SubmissionRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, session_id, answers, score, time_spent, submitted_at
		 FROM submissions WHERE session_id = $1`, sessionID))
}

func (r *SubmissionRepository) scanOne(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.ExamID, &s.UserID, &s.SessionID,
		&s.Answers, &s.Score, &s.TimeSpent, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByExam retrieves all submissions for an exam, newest first, with the
// submitting user's name for the author's results view.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SubmissionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.session_id, s.user_id, u.name, u.email, s.score, s.time_spent, s.submitted_at
		 FROM submissions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.exam_id = $1
		 ORDER BY s.submitted_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.SubmissionRow{}
	for rows.Next() {
		var row model.SubmissionRow
		if err := rows.Scan(&row.ID, &row.SessionID, &row.UserID, &row.UserName,
			&row.UserEmail, &row.Score, &row.TimeSpent, &row.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
