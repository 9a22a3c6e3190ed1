package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, code, title, status, duration_minutes, author_id, created_at, updated_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Code, &e.Title, &e.Status, &e.DurationMinutes,
		&e.AuthorID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetByCode retrieves an exam by its join code.
func (r *ExamRepository) GetByCode(ctx context.Context, code string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE code = $1`, code))
}

// Resolve retrieves an exam by either id or code depending on the reference kind.
func (r *ExamRepository) Resolve(ctx context.Context, ref model.ExamRef) (*model.Exam, error) {
	if ref.Kind == model.ExamRefID {
		return r.GetByID(ctx, ref.ID)
	}
	return r.GetByCode(ctx, ref.Code)
}

// ExistsByCode reports whether an exam with the given code exists.
func (r *ExamRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM exams WHERE code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// ListByAuthor retrieves a page of exams created by a user, newest first, with
// question counts. An empty status matches all statuses. Returns the page and
// the total number of matching exams.
func (r *ExamRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, status model.ExamStatus, limit, offset int) ([]model.ExamSummary, int, error) {
	where := `WHERE e.author_id = $1`
	countArgs := []interface{}{authorID}
	if status != "" {
		where += ` AND e.status = $2`
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams e `+where, countArgs...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(countArgs, limit, offset)
	n := len(countArgs)
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.code, e.title, e.status, e.duration_minutes, e.created_at, e.updated_at,
		        COUNT(q.id) AS question_count
		 FROM exams e
		 LEFT JOIN questions q ON q.exam_id = e.id
		 `+where+`
		 GROUP BY e.id
		 ORDER BY e.created_at DESC
		 LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := []model.ExamSummary{}
	for rows.Next() {
		var s model.ExamSummary
		if err := rows.Scan(&s.ID, &s.Code, &s.Title, &s.Status, &s.DurationMinutes,
			&s.CreatedAt, &s.UpdatedAt, &s.QuestionCount); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// ListPublished retrieves all published exams. Used to prewarm the cache.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = 'PUBLISHED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Code, &e.Title, &e.Status, &e.DurationMinutes,
			&e.AuthorID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// CreateWithQuestions inserts an exam and its questions in a single transaction.
func (r *ExamRepository) CreateWithQuestions(ctx context.Context, e *model.Exam, questions []model.QuestionInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (code, title, status, duration_minutes, author_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		e.Code, e.Title, e.Status, e.DurationMinutes, e.AuthorID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}

	for i, q := range questions {
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (exam_id, content, options, correct_idx, explanation, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, q.Content, q.Options, q.CorrectIdx, q.Explanation, i)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateWithQuestions updates an exam's fields and, when questions is non-nil,
// synchronizes its question set in the same transaction: questions whose id is
// present are updated in place, questions absent from the incoming set are
// deleted, and questions without an id are inserted.
func (r *ExamRepository) UpdateWithQuestions(ctx context.Context, e *model.Exam, questions *[]model.QuestionInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE exams
		 SET code = $2, title = $3, status = $4, duration_minutes = $5, updated_at = NOW()
		 WHERE id = $1`,
		e.ID, e.Code, e.Title, e.Status, e.DurationMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if questions != nil {
		if err := r.syncQuestions(ctx, tx, e.ID, *questions); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ExamRepository) syncQuestions(ctx context.Context, tx pgx.Tx, examID uuid.UUID, questions []model.QuestionInput) error {
	keepIDs := []uuid.UUID{}
	for _, q := range questions {
		if q.ID != nil {
			keepIDs = append(keepIDs, *q.ID)
		}
	}

	// Delete questions that are no longer part of the incoming set.
	_, err := tx.Exec(ctx,
		`DELETE FROM questions WHERE exam_id = $1 AND NOT (id = ANY($2))`,
		examID, keepIDs)
	if err != nil {
		return fmt.Errorf("delete removed questions: %w", err)
	}

	for i, q := range questions {
		if q.ID != nil {
			tag, err := tx.Exec(ctx,
				`UPDATE questions
				 SET content = $3, options = $4, correct_idx = $5, explanation = $6, position = $7
				 WHERE id = $1 AND exam_id = $2`,
				*q.ID, examID, q.Content, q.Options, q.CorrectIdx, q.Explanation, i)
			if err != nil {
				return fmt.Errorf("update question %d: %w", i+1, err)
			}
			if tag.RowsAffected() > 0 {
				continue
			}
			// Unknown or foreign id: fall through and insert as a new row.
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO questions (exam_id, content, options, correct_idx, explanation, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			examID, q.Content, q.Options, q.CorrectIdx, q.Explanation, i)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	return nil
}

// Delete removes an exam. Questions, sessions and submissions cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
