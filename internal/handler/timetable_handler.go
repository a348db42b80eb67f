package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/stundenplan-api/internal/service"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

// TimetableHandler serves the laid-out weekly grid and its export formats.
type TimetableHandler struct {
	timetable *service.TimetableService
	export    *service.ExportService
}

// NewTimetableHandler creates a new handler.
func NewTimetableHandler(timetable *service.TimetableService, export *service.ExportService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, export: export}
}

// Week returns the merged weekly grid for the authenticated user.
// The optional weekStart query parameter is snapped to its Monday;
// force=1 bypasses the lesson cache.
func (h *TimetableHandler) Week(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.weekView(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// ICS exports the week as an iCalendar document.
func (h *TimetableHandler) ICS(c *gin.Context) {
	view, err := h.weekView(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.export.ICS(view)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=stundenplan-%s.ics", view.WeekStart))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", payload)
}

// PDF exports the week as a printable PDF.
func (h *TimetableHandler) PDF(c *gin.Context) {
	view, err := h.weekView(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.export.PDF(view)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=stundenplan-%s.pdf", view.WeekStart))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (h *TimetableHandler) weekView(c *gin.Context) (*service.TimetableView, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	force := c.Query("force") == "1" || c.Query("force") == "true"
	return h.timetable.Week(c.Request.Context(), claims.UserID, c.Query("weekStart"), force)
}
