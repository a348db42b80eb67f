package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/service"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

// VacationHandler wires HTTP endpoints to the vacation service.
type VacationHandler struct {
	service *service.VacationService
}

// NewVacationHandler creates a new handler.
func NewVacationHandler(svc *service.VacationService) *VacationHandler {
	return &VacationHandler{service: svc}
}

// List returns all configured vacation periods.
func (h *VacationHandler) List(c *gin.Context) {
	periods, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, periods, nil)
}

// Create stores a new vacation period.
func (h *VacationHandler) Create(c *gin.Context) {
	var period models.VacationPeriod
	if err := c.ShouldBindJSON(&period); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid vacation payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// Delete removes a vacation period by ID.
func (h *VacationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
