package service

import (
	"context"
	"fmt"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ReplyPreviewLimit caps the replies embedded under each top-level
	// message in a thread view.
	ReplyPreviewLimit = 10

	replyFetchParallelism = 8
)

// QueryService builds the read views over threads and messages.
type QueryService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewQueryService(threads repository.ThreadRepository, messages repository.MessageRepository, logger *zap.Logger) *QueryService {
	return &QueryService{threads: threads, messages: messages, logger: logger}
}

// GetThreadView returns the thread, one page of its top-level messages
// (newest first) and, for each, the oldest ReplyPreviewLimit replies plus
// the live reply count.
func (s *QueryService) GetThreadView(ctx context.Context, slug string, page, limit int) (*models.ThreadView, error) {
	thread, err := threadBySlug(ctx, s.threads, slug)
	if err != nil {
		return nil, err
	}

	p := ClampPage(page, limit, DefaultMessageLimit)
	top, total, err := s.messages.ListTopLevel(ctx, thread.ID, p)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list messages of %s: %w", thread.ID, err))
	}

	out := make([]models.MessageWithReplies, len(top))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replyFetchParallelism)
	for i := range top {
		g.Go(func() error {
			replies, count, err := s.messages.ListReplies(gctx, top[i].ID, models.Page{Number: 1, Limit: ReplyPreviewLimit})
			if err != nil {
				return fmt.Errorf("list replies of %d: %w", top[i].ID, err)
			}
			if replies == nil {
				replies = []models.Message{}
			}
			out[i] = models.MessageWithReplies{
				Message:      top[i],
				Replies:      replies,
				RepliesCount: count,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}

	return &models.ThreadView{
		Thread:     thread,
		Messages:   out,
		Pagination: models.NewPagination(total, p),
	}, nil
}

// ListReplies pages through every reply of a message, oldest first.
func (s *QueryService) ListReplies(ctx context.Context, messageID int64, page, limit int) ([]models.Message, models.Pagination, error) {
	parent, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(fmt.Errorf("get message %d: %w", messageID, err))
	}
	if parent == nil {
		return nil, models.Pagination{}, apperr.NotFound("message")
	}

	p := ClampPage(page, limit, DefaultMessageLimit)
	replies, total, err := s.messages.ListReplies(ctx, messageID, p)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(fmt.Errorf("list replies of %d: %w", messageID, err))
	}
	if replies == nil {
		replies = []models.Message{}
	}
	return replies, models.NewPagination(total, p), nil
}
