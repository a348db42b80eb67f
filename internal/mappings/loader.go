// Package mappings loads the subject and room display tables maintained by
// the school. Course mappings come from a JSON file when present, otherwise
// from the legacy "lhs = rhs" text format.
package mappings

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/normalize"
	"github.com/planwerk/stundenplan-api/pkg/config"
)

// Loader reads mapping files from disk. Files are optional; a missing file
// yields an empty table, never an error.
type Loader struct {
	cfg    config.MappingsConfig
	logger *zap.Logger
}

// NewLoader constructs a loader.
func NewLoader(cfg config.MappingsConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger}
}

// Load reads both tables. Keys are normalised with the strong form so
// lookups match regardless of the raw spelling in the file.
func (l *Loader) Load() models.Mappings {
	return models.Mappings{
		Courses: l.loadCourses(),
		Rooms:   l.loadJSON(l.cfg.RoomsJSONPath),
	}
}

// CourseOptions derives the selectable course catalog from the course table,
// sorted by display label.
func CourseOptions(courses map[string]string) []models.CourseOption {
	out := make([]models.CourseOption, 0, len(courses))
	for key, label := range courses {
		if label == "" {
			label = key
		}
		out = append(out, models.CourseOption{Key: key, Label: label})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label == out[j].Label {
			return out[i].Key < out[j].Key
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (l *Loader) loadCourses() map[string]string {
	if table := l.loadJSON(l.cfg.CoursesJSONPath); len(table) > 0 {
		return table
	}
	return l.loadText(l.cfg.CoursesTxtPath)
}

func (l *Loader) loadJSON(path string) map[string]string {
	out := map[string]string{}
	if path == "" {
		return out
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("reading mapping file failed", zap.String("path", path), zap.Error(err))
		}
		return out
	}

	var table map[string]string
	if err := json.Unmarshal(raw, &table); err != nil {
		l.logger.Warn("mapping file is not a JSON object", zap.String("path", path), zap.Error(err))
		return out
	}
	for key, value := range table {
		if norm := normalize.Strong(key); norm != "" {
			out[norm] = strings.TrimSpace(value)
		}
	}
	return out
}

// loadText parses the legacy line format: "lhs = rhs" per line, "#" starts
// a comment, blank lines are skipped.
func (l *Loader) loadText(path string) map[string]string {
	out := map[string]string{}
	if path == "" {
		return out
	}
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("reading mapping file failed", zap.String("path", path), zap.Error(err))
		}
		return out
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lhs, rhs, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key := normalize.Strong(lhs)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(rhs)
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("scanning mapping file failed", zap.String("path", path), zap.Error(err))
	}
	return out
}
