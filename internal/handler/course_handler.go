package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/stundenplan-api/internal/service"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

// CourseHandler exposes the selectable course catalog and the raw mapping
// tables.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Options returns the sorted catalog of selectable courses.
func (h *CourseHandler) Options(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Options(c.Request.Context()), nil)
}

// Mappings returns the configured course and room mapping tables.
func (h *CourseHandler) Mappings(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Mappings(), nil)
}
