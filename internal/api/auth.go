package api

import (
	"context"
	"net/http"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	SignIn(ctx context.Context, email string) (*models.User, string, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// AuthHandler issues tokens. Sign-in is the only public write endpoint:
// the caller has no token yet.
type AuthHandler struct {
	auth   AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type signinRequest struct {
	Email string `json:"email"`
}

// authResponse is returned by sign-in. The client sends the token back as
// "Authorization: Bearer <token>", or as ?token= on the websocket.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signin handles POST /v1/auth/signin
//
// The first sign-in with a campus address creates an anonymous user with a
// generated handle. Later sign-ins with the same address get the same user.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.InvalidInput("invalid request body"))
		return
	}

	user, token, err := h.auth.SignIn(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}
