package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanctuarylabs/sanctuary-backend/internal/services"
)

type UserHandler struct {
	authService services.AuthService
}

func NewUserHandler(authService services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	user, err := uh.authService.GetCurrentUser(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
