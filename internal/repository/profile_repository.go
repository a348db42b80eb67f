package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/planwerk/stundenplan-api/internal/models"
)

// profileRow is the storage shape; the list/struct fields live in JSONB.
type profileRow struct {
	UserID    string          `db:"user_id"`
	Name      string          `db:"name"`
	Courses   json.RawMessage `db:"courses"`
	Colors    json.RawMessage `db:"colors"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// ProfileRepository stores per-user preference state. Exams live in their
// own table and are joined back in by the service layer.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the stored profile for a user. A user without a stored row
// gets the zero profile, not an error.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT user_id, name, courses, colors, updated_at FROM profiles WHERE user_id = $1 LIMIT 1`
	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return &models.Profile{Courses: []string{}}, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	profile := &models.Profile{Name: row.Name, Courses: []string{}}
	if len(row.Courses) > 0 {
		if err := json.Unmarshal(row.Courses, &profile.Courses); err != nil {
			return nil, fmt.Errorf("unmarshal profile courses: %w", err)
		}
	}
	if len(row.Colors) > 0 {
		if err := json.Unmarshal(row.Colors, &profile.Colors); err != nil {
			return nil, fmt.Errorf("unmarshal profile colors: %w", err)
		}
	}
	return profile, nil
}

// All returns every stored profile keyed by user ID. The sync coordinator
// snapshots this map for the upstream push.
func (r *ProfileRepository) All(ctx context.Context) (map[string]models.Profile, error) {
	const query = `SELECT user_id, name, courses, colors, updated_at FROM profiles ORDER BY user_id`
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make(map[string]models.Profile, len(rows))
	for _, row := range rows {
		profile := models.Profile{Name: row.Name, Courses: []string{}}
		if len(row.Courses) > 0 {
			if err := json.Unmarshal(row.Courses, &profile.Courses); err != nil {
				return nil, fmt.Errorf("unmarshal profile courses: %w", err)
			}
		}
		if len(row.Colors) > 0 {
			if err := json.Unmarshal(row.Colors, &profile.Colors); err != nil {
				return nil, fmt.Errorf("unmarshal profile colors: %w", err)
			}
		}
		out[row.UserID] = profile
	}
	return out, nil
}

// Upsert writes the profile fields for a user.
func (r *ProfileRepository) Upsert(ctx context.Context, userID string, profile *models.Profile) error {
	courses, err := json.Marshal(profile.Courses)
	if err != nil {
		return fmt.Errorf("marshal profile courses: %w", err)
	}
	colors, err := json.Marshal(profile.Colors)
	if err != nil {
		return fmt.Errorf("marshal profile colors: %w", err)
	}

	const query = `
		INSERT INTO profiles (user_id, name, courses, colors, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, courses = EXCLUDED.courses, colors = EXCLUDED.colors, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, userID, profile.Name, courses, colors, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
