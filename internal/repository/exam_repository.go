package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planwerk/stundenplan-api/internal/models"
)

type examRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Subject     string    `db:"subject"`
	Name        string    `db:"name"`
	Date        string    `db:"exam_date"`
	PeriodStart int       `db:"period_start"`
	PeriodEnd   int       `db:"period_end"`
	CreatedAt   time.Time `db:"created_at"`
}

// ExamRepository stores the user-authored exam entries.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new instance of ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// ListByUser returns the user's exams ordered by date and period.
func (r *ExamRepository) ListByUser(ctx context.Context, userID string) ([]models.ExamEntry, error) {
	const query = `SELECT id, user_id, subject, name, exam_date, period_start, period_end, created_at FROM exams WHERE user_id = $1 ORDER BY exam_date, period_start, id`
	var rows []examRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	out := make([]models.ExamEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ExamEntry{
			ID:          row.ID,
			Subject:     row.Subject,
			Name:        row.Name,
			Date:        row.Date,
			PeriodStart: row.PeriodStart,
			PeriodEnd:   row.PeriodEnd,
			Source:      models.ExamSourceLocal,
		})
	}
	return out, nil
}

// Create inserts one exam entry for a user.
func (r *ExamRepository) Create(ctx context.Context, userID string, entry *models.ExamEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	row := examRow{
		ID:          entry.ID,
		UserID:      userID,
		Subject:     entry.Subject,
		Name:        entry.Name,
		Date:        entry.Date,
		PeriodStart: entry.PeriodStart,
		PeriodEnd:   entry.PeriodEnd,
		CreatedAt:   time.Now().UTC(),
	}
	const query = `INSERT INTO exams (id, user_id, subject, name, exam_date, period_start, period_end, created_at) VALUES (:id, :user_id, :subject, :name, :exam_date, :period_start, :period_end, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Delete removes one of the user's exams. Returns the number of rows removed
// so the service can distinguish a miss.
func (r *ExamRepository) Delete(ctx context.Context, userID, examID string) (int64, error) {
	const query = `DELETE FROM exams WHERE user_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, examID)
	if err != nil {
		return 0, fmt.Errorf("delete exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete exam rows affected: %w", err)
	}
	return affected, nil
}

// ReplaceAll swaps the user's full exam list inside one transaction. Used by
// profile sync where the client state is authoritative.
func (r *ExamRepository) ReplaceAll(ctx context.Context, userID string, entries []models.ExamEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace exams: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear exams: %w", err)
	}

	const insert = `INSERT INTO exams (id, user_id, subject, name, exam_date, period_start, period_end, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now().UTC()
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insert, id, userID, entry.Subject, entry.Name, entry.Date, entry.PeriodStart, entry.PeriodEnd, now); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace exams: %w", err)
	}
	return nil
}
