package api

import (
	"context"
	"net/http"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/middleware"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageService interface {
	PostMessage(ctx context.Context, author *service.Author, in service.PostInput) (*models.Message, error)
	React(ctx context.Context, author *service.Author, messageID int64, kind models.ReactionKind) (*models.Message, error)
}

type MessageHandler struct {
	messages MessageService
	queries  QueryService
	logger   *zap.Logger
}

func NewMessageHandler(messages MessageService, queries QueryService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, queries: queries, logger: logger}
}

type createMessageRequest struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId"`
}

// Create handles POST /v1/messages
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.InvalidInput("invalid request body"))
		return
	}

	// An unparseable thread id is just a thread that does not exist; the
	// service reports it after content checks like any other unknown id.
	threadID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		threadID = uuid.Nil
	}

	msg, err := h.messages.PostMessage(c.Request.Context(), authorFrom(c), service.PostInput{
		ThreadID: threadID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Replies handles GET /v1/messages/:id/replies?page=&limit=
func (h *MessageHandler) Replies(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page, limit, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	replies, pagination, err := h.queries.ListReplies(c.Request.Context(), id, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies, "pagination": pagination})
}

type reactRequest struct {
	Kind string `json:"kind"`
}

// React handles POST /v1/messages/:id/reactions
func (h *MessageHandler) React(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.InvalidInput("invalid request body"))
		return
	}

	msg, err := h.messages.React(c.Request.Context(), authorFrom(c), id, models.ReactionKind(req.Kind))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func authorFrom(c *gin.Context) *service.Author {
	id := middleware.GetUserID(c)
	if id == uuid.Nil {
		return nil
	}
	return &service.Author{ID: id, Handle: middleware.GetHandle(c)}
}
