package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/service"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

// ExamHandler wires HTTP endpoints to the exam service.
type ExamHandler struct {
	service *service.ExamService
}

// NewExamHandler creates a new handler.
func NewExamHandler(svc *service.ExamService) *ExamHandler {
	return &ExamHandler{service: svc}
}

// List returns the user's locally stored exams.
func (h *ExamHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Merged returns local exams merged with the remote feed, remote winning
// on colliding keys. An optional weekStart query narrows the result to the
// Monday-to-Friday range containing that date.
func (h *ExamHandler) Merged(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.Merged(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if ws := c.Query("weekStart"); ws != "" {
		entries, err = filterToWeek(entries, ws)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

func filterToWeek(entries []models.ExamEntry, date string) ([]models.ExamEntry, error) {
	monday, err := service.MondayOf(date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid weekStart date")
	}
	start, err := time.Parse("2006-01-02", monday)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid weekStart date")
	}
	friday := start.AddDate(0, 0, 4).Format("2006-01-02")

	out := make([]models.ExamEntry, 0, len(entries))
	for _, entry := range entries {
		if monday <= entry.Date && entry.Date <= friday {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Create stores a new exam for the user.
func (h *ExamHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var record models.ExamRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam payload"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), claims.UserID, record)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

// Delete removes one of the user's exams by ID.
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
