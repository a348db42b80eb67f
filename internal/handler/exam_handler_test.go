package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/stundenplan-api/internal/middleware"
	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/service"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

type examRepoMock struct {
	entries  []models.ExamEntry
	created  []models.ExamEntry
	affected int64
}

func (m *examRepoMock) ListByUser(_ context.Context, _ string) ([]models.ExamEntry, error) {
	return m.entries, nil
}

func (m *examRepoMock) Create(_ context.Context, _ string, entry *models.ExamEntry) error {
	m.created = append(m.created, *entry)
	return nil
}

func (m *examRepoMock) Delete(_ context.Context, _, _ string) (int64, error) {
	return m.affected, nil
}

func authedContext(t *testing.T, w *httptest.ResponseRecorder, method, target string, body []byte) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "alex"})
	return c
}

func TestExamHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &examRepoMock{}
	handler := NewExamHandler(service.NewExamService(repo, nil, nil, nil, 0))

	payload, _ := json.Marshal(map[string]interface{}{
		"name":   "Analysis",
		"date":   "2024-03-04",
		"period": "3",
	})
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/exams", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, 3, repo.created[0].PeriodStart)
	assert.Equal(t, 3, repo.created[0].PeriodEnd)
	assert.NotEmpty(t, repo.created[0].ID)
}

func TestExamHandlerCreateOverlapConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &examRepoMock{entries: []models.ExamEntry{
		{ID: "k1", Name: "LK Klausur", Date: "2024-03-04", PeriodStart: 2, PeriodEnd: 4},
	}}
	handler := NewExamHandler(service.NewExamService(repo, nil, nil, nil, 0))

	payload, _ := json.Marshal(map[string]interface{}{
		"name":        "Analysis",
		"date":        "2024-03-04",
		"periodStart": 3,
	})
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/exams", payload)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, repo.created)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "EXAM_OVERLAP", envelope.Error.Code)
}

func TestExamHandlerDeleteNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(service.NewExamService(&examRepoMock{affected: 0}, nil, nil, nil, 0))

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodDelete, "/exams/k9", nil)
	c.Params = gin.Params{{Key: "id", Value: "k9"}}

	handler.Delete(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExamHandlerMergedFiltersToWeek(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &examRepoMock{entries: []models.ExamEntry{
		{ID: "k1", Name: "Analysis", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 1},
		{ID: "k2", Name: "Bio Test", Date: "2024-03-12", PeriodStart: 2, PeriodEnd: 2},
	}}
	handler := NewExamHandler(service.NewExamService(repo, nil, nil, nil, 0))

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/exams/merged?weekStart=2024-03-06", nil)

	handler.Merged(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.ExamEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "k1", envelope.Data[0].ID)
}

func TestExamHandlerListUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExamHandler(service.NewExamService(&examRepoMock{}, nil, nil, nil, 0))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/exams", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
