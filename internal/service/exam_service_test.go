package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/stundenplan-api/internal/models"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

type stubExamRepo struct {
	entries  []models.ExamEntry
	created  []models.ExamEntry
	deleted  []string
	listErr  error
	replaced []models.ExamEntry
}

func (s *stubExamRepo) ListByUser(_ context.Context, _ string) ([]models.ExamEntry, error) {
	return s.entries, s.listErr
}

func (s *stubExamRepo) Create(_ context.Context, _ string, entry *models.ExamEntry) error {
	s.created = append(s.created, *entry)
	return nil
}

func (s *stubExamRepo) Delete(_ context.Context, _ string, examID string) (int64, error) {
	s.deleted = append(s.deleted, examID)
	if examID == "missing" {
		return 0, nil
	}
	return 1, nil
}

func (s *stubExamRepo) ReplaceAll(_ context.Context, _ string, entries []models.ExamEntry) error {
	s.replaced = entries
	return nil
}

type stubFeed struct {
	entries []models.ExamEntry
	err     error
	calls   int
}

func (s *stubFeed) Fetch(_ context.Context) ([]models.ExamEntry, error) {
	s.calls++
	return s.entries, s.err
}

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func TestCreateExamRejectsOverlap(t *testing.T) {
	repo := &stubExamRepo{entries: []models.ExamEntry{
		{ID: "k1", Name: "Analysis", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 2},
	}}
	svc := NewExamService(repo, &stubFeed{}, nil, nil, time.Minute)

	_, err := svc.Create(context.Background(), "u1", models.ExamRecord{
		Name: "Vokabeltest", Date: "2024-03-04", PeriodStart: 2, PeriodEnd: 3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrExamOverlap)
	assert.Empty(t, repo.created)
}

func TestCreateExamStoresNormalisedEntry(t *testing.T) {
	repo := &stubExamRepo{}
	svc := NewExamService(repo, &stubFeed{}, nil, nil, time.Minute)

	entry, err := svc.Create(context.Background(), "u1", models.ExamRecord{
		Name: "Genetik", Subject: "Bio", Date: "2024-03-06", Period: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, entry.PeriodStart)
	assert.Equal(t, 5, entry.PeriodEnd)
	require.Len(t, repo.created, 1)
}

func TestCreateExamRejectsPeriodOutsideTable(t *testing.T) {
	svc := NewExamService(&stubExamRepo{}, &stubFeed{}, nil, nil, time.Minute)
	_, err := svc.Create(context.Background(), "u1", models.ExamRecord{
		Name: "Phantom", Date: "2024-03-06", PeriodStart: 9,
	})
	assert.Error(t, err)
}

func TestDeleteExamNotFound(t *testing.T) {
	svc := NewExamService(&stubExamRepo{}, &stubFeed{}, nil, nil, time.Minute)
	err := svc.Delete(context.Background(), "u1", "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMergedRemoteWinsAndUsesCache(t *testing.T) {
	repo := &stubExamRepo{entries: []models.ExamEntry{
		{ID: "l1", Subject: "Mathe", Name: "Notiz", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 1},
	}}
	feed := &stubFeed{entries: []models.ExamEntry{
		{ID: "r1", Subject: "Mathe", Name: "Analysis", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 1},
	}}
	cache := newMemoryCache()
	svc := NewExamService(repo, feed, cache, nil, time.Minute)

	merged, err := svc.Merged(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "r1", merged[0].ID)

	_, err = svc.Merged(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.calls, "second call is served from cache")
}

func TestMergedServesLastGoodOnFeedFailure(t *testing.T) {
	repo := &stubExamRepo{}
	feed := &stubFeed{entries: []models.ExamEntry{
		{ID: "r1", Subject: "Mathe", Name: "Analysis", Date: "2024-03-04", PeriodStart: 1, PeriodEnd: 1},
	}}
	cache := newMemoryCache()
	svc := NewExamService(repo, feed, cache, nil, time.Minute)

	_, err := svc.Merged(context.Background(), "u1")
	require.NoError(t, err)

	// expire the TTL copy, keep the last-good one
	delete(cache.values, "exams:remote")
	feed.err = errors.New("feed down")

	merged, err := svc.Merged(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "r1", merged[0].ID)
}
