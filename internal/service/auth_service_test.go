package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/planwerk/stundenplan-api/internal/models"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[string]*models.User{}}
}

func (s *stubUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u" + user.Username
	}
	s.users[user.ID] = user
	return nil
}

type stubProfileReader struct{}

func (stubProfileReader) Get(_ context.Context, _ string) (*models.Profile, error) {
	return &models.Profile{Courses: []string{}}, nil
}

func newAuthService(repo *stubUserRepo) *AuthService {
	return NewAuthService(repo, stubProfileReader{}, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "stundenplan-test",
	})
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alex", Password: "geheim1"})
	require.NoError(t, err)
	assert.True(t, resp.Authenticated)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, resp.Profile)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "alex", Password: "geheim1"})
	require.NoError(t, err)
	assert.Equal(t, "alex", login.Username)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alex", claims.Username)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alex", Password: "geheim1"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Username: "alex", Password: "anders2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUsernameExists)
}

func TestRegisterValidatesPayload(t *testing.T) {
	svc := newAuthService(newStubUserRepo())
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "ab", Password: "x"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("richtig"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["u1"] = &models.User{ID: "u1", Username: "alex", PasswordHash: string(hash)}
	svc := newAuthService(repo)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "alex", Password: "falsch"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "niemand", Password: "egal"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newStubUserRepo())
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
