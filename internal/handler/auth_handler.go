package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/internal/service"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
	"github.com/planwerk/stundenplan-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Register creates a new account and returns a signed token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid register payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login authenticates a user by username and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout ends the client session. Access tokens are stateless, so the
// server side has nothing to revoke; clients drop the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.NoContent(c)
}

// Status reports the authentication state and current profile.
func (h *AuthHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.JSON(c, http.StatusOK, &models.AuthResponse{Authenticated: false}, nil)
		return
	}

	res, err := h.service.Status(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
