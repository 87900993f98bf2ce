package api

import (
	"net/http"

	"github.com/ayman-boop/ub-chat/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	auth   AuthService
	logger *zap.Logger
}

func NewUserHandler(auth AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{auth: auth, logger: logger}
}

// GetMe handles GET /v1/users/me
//
// The profile carries the handle and join date only. The user id never
// leaves the server.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
