package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/planwerk/stundenplan-api/internal/models"
)

// VacationRepository stores admin-maintained vacation periods. These
// supplement the upstream holiday list when the school publishes none.
type VacationRepository struct {
	db *sqlx.DB
}

// NewVacationRepository creates a new instance of VacationRepository.
func NewVacationRepository(db *sqlx.DB) *VacationRepository {
	return &VacationRepository{db: db}
}

// List returns all vacation periods ordered by start date.
func (r *VacationRepository) List(ctx context.Context) ([]models.VacationPeriod, error) {
	const query = `SELECT id, title, start_date, end_date FROM vacations ORDER BY start_date, id`
	var out []models.VacationPeriod
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list vacations: %w", err)
	}
	return out, nil
}

// Create inserts a vacation period.
func (r *VacationRepository) Create(ctx context.Context, v *models.VacationPeriod) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	const query = `INSERT INTO vacations (id, title, start_date, end_date) VALUES (:id, :title, :start_date, :end_date)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create vacation: %w", err)
	}
	return nil
}

// Delete removes a vacation period.
func (r *VacationRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM vacations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete vacation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete vacation rows affected: %w", err)
	}
	return affected, nil
}
