package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/stundenplan-api/internal/models"
)

func TestGetProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "name", "courses", "colors", "updated_at"}).
		AddRow("u1", "Alex", []byte(`["m 1","bio"]`), []byte(`{"theme":"dark"}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, name, courses, colors, updated_at FROM profiles WHERE user_id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(rows)

	profile, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", profile.Name)
	assert.Equal(t, []string{"m 1", "bio"}, profile.Courses)
	assert.Equal(t, "dark", profile.Colors.Theme)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileMissingRowYieldsZeroProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery("SELECT user_id, name, courses, colors, updated_at FROM profiles").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "courses", "colors", "updated_at"}))

	profile, err := repo.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, profile.Name)
	assert.Empty(t, profile.Courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(sqlmock.NewResult(0, 1))

	profile := &models.Profile{Name: "Alex", Courses: []string{"m 1"}, Colors: models.ColorPrefs{Theme: "light"}}
	require.NoError(t, repo.Upsert(context.Background(), "u1", profile))
	assert.NoError(t, mock.ExpectationsWereMet())
}
