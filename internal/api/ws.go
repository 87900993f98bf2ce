package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/ayman-boop/ub-chat/internal/middleware"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/realtime"
	"github.com/ayman-boop/ub-chat/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler upgrades authenticated requests to a live session.
type WSHandler struct {
	hub      *realtime.Hub
	messages MessageService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, messages MessageService, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Serve handles GET /v1/ws?token=
//
// The connection lives until the client leaves or falls too far behind.
// Messages sent over it go through the same write path as POST /v1/messages.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	author := &service.Author{ID: middleware.GetUserID(c), Handle: middleware.GetHandle(c)}
	session := h.hub.Connect(author.ID, author.Handle)

	post := func(ctx context.Context, _ *realtime.Session, threadID uuid.UUID, parentID *int64, content string) (*models.Message, error) {
		return h.messages.PostMessage(ctx, author, service.PostInput{
			ThreadID: threadID,
			ParentID: parentID,
			Content:  content,
		})
	}
	h.hub.Serve(c.Request.Context(), conn, session, post)
}
