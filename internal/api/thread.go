package api

import (
	"context"
	"net/http"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ThreadService interface {
	CreateThread(ctx context.Context, in models.NewThread) (*models.Thread, error)
	ListThreads(ctx context.Context, filter models.ThreadFilter, page, limit int) ([]models.Thread, models.Pagination, error)
}

type QueryService interface {
	GetThreadView(ctx context.Context, slug string, page, limit int) (*models.ThreadView, error)
	ListReplies(ctx context.Context, messageID int64, page, limit int) ([]models.Message, models.Pagination, error)
}

type ThreadHandler struct {
	threads ThreadService
	queries QueryService
	logger  *zap.Logger
}

func NewThreadHandler(threads ThreadService, queries QueryService, logger *zap.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, queries: queries, logger: logger}
}

type createThreadRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	CourseCode    string `json:"courseCode"`
	ProfessorName string `json:"professorName"`
}

// Create handles POST /v1/threads
func (h *ThreadHandler) Create(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.InvalidInput("invalid request body"))
		return
	}

	thread, err := h.threads.CreateThread(c.Request.Context(), models.NewThread{
		Title:         req.Title,
		Description:   req.Description,
		Category:      models.Category(req.Category),
		CourseCode:    req.CourseCode,
		ProfessorName: req.ProfessorName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

// List handles GET /v1/threads?category=&search=&page=&limit=
func (h *ThreadHandler) List(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter := models.ThreadFilter{
		Category: models.Category(c.Query("category")),
		Search:   c.Query("search"),
	}

	threads, pagination, err := h.threads.ListThreads(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "pagination": pagination})
}

// GetBySlug handles GET /v1/threads/:slug?page=&limit=
//
// Returns the thread with one page of top-level messages, each carrying a
// short preview of its replies and the full reply count.
func (h *ThreadHandler) GetBySlug(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.queries.GetThreadView(c.Request.Context(), c.Param("slug"), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
