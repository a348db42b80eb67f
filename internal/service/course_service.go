package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/mappings"
	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/normalize"
)

type subjectSource interface {
	FetchSubjects(ctx context.Context) ([]string, error)
}

// CourseService exposes the selectable course catalog and the raw mapping
// tables. The catalog comes from the maintained mapping files; when those
// are empty it falls back to the upstream subject list.
type CourseService struct {
	mappings models.Mappings
	subjects subjectSource
	logger   *zap.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(m models.Mappings, subjects subjectSource, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{mappings: m, subjects: subjects, logger: logger}
}

// Options returns the sorted course catalog.
func (s *CourseService) Options(ctx context.Context) []models.CourseOption {
	if len(s.mappings.Courses) > 0 {
		return mappings.CourseOptions(s.mappings.Courses)
	}

	if s.subjects == nil {
		return []models.CourseOption{}
	}
	names, err := s.subjects.FetchSubjects(ctx)
	if err != nil {
		s.logger.Warn("fetching upstream subjects failed", zap.Error(err))
		return []models.CourseOption{}
	}

	table := make(map[string]string, len(names))
	for _, name := range names {
		if key := normalize.Strong(name); key != "" {
			table[key] = name
		}
	}
	return mappings.CourseOptions(table)
}

// Mappings returns the raw display tables.
func (s *CourseService) Mappings() models.Mappings {
	return s.mappings
}
