package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/moderation"
	"github.com/ayman-boop/ub-chat/internal/observ"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxContentLength = 2000

	defaultActivityAttempts = 3
	defaultActivityBackoff  = 50 * time.Millisecond
	reconcileBatch          = 100
)

// Notifier receives accepted writes for real-time fan-out. Implementations
// must not block.
type Notifier interface {
	MessageCreated(msg *models.Message)
	ReactionUpdated(msg *models.Message)
}

type nopNotifier struct{}

func (nopNotifier) MessageCreated(*models.Message)  {}
func (nopNotifier) ReactionUpdated(*models.Message) {}

// Author is the authenticated poster.
type Author struct {
	ID     uuid.UUID
	Handle string
}

type PostInput struct {
	ThreadID uuid.UUID
	ParentID *int64
	Content  string
}

// MessageService is the write path for messages and reactions.
type MessageService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	checker  moderation.Checker
	notifier Notifier
	logger   *zap.Logger

	maxContentLength int
	activityAttempts int
	activityBackoff  time.Duration
}

type MessageOption func(*MessageService)

func WithMaxContentLength(n int) MessageOption {
	return func(s *MessageService) {
		if n > 0 {
			s.maxContentLength = n
		}
	}
}

// WithActivityRetry sets how many times the thread counter update is tried
// before the message is left for the reconciler, and the first backoff.
func WithActivityRetry(attempts int, backoff time.Duration) MessageOption {
	return func(s *MessageService) {
		if attempts > 0 {
			s.activityAttempts = attempts
		}
		if backoff >= 0 {
			s.activityBackoff = backoff
		}
	}
}

func WithNotifier(n Notifier) MessageOption {
	return func(s *MessageService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func NewMessageService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	checker moderation.Checker,
	logger *zap.Logger,
	opts ...MessageOption,
) *MessageService {
	s := &MessageService{
		threads:          threads,
		messages:         messages,
		checker:          checker,
		notifier:         nopNotifier{},
		logger:           logger,
		maxContentLength: DefaultMaxContentLength,
		activityAttempts: defaultActivityAttempts,
		activityBackoff:  defaultActivityBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostMessage validates and persists a message or reply, folds it into the
// thread counters and hands it to the notifier.
//
// Validation runs in a fixed order and nothing is written until all of it
// passes. Once the insert starts the request context is detached: a client
// that hangs up does not leave a message without its counter update.
func (s *MessageService) PostMessage(ctx context.Context, author *Author, in PostInput) (*models.Message, error) {
	if author == nil || author.ID == uuid.Nil {
		return nil, s.refuse(apperr.Unauthorized("authentication required"))
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, s.refuse(apperr.InvalidInput("content is required"))
	}
	if utf8.RuneCountInString(content) > s.maxContentLength {
		return nil, s.refuse(apperr.InvalidInput(fmt.Sprintf("content must be at most %d characters", s.maxContentLength)))
	}

	if !s.checker.IsAcceptable(content) {
		s.logger.Info("message rejected by moderation",
			zap.String("thread_id", in.ThreadID.String()),
			zap.String("author", author.Handle),
		)
		return nil, s.refuse(apperr.Rejected())
	}

	thread, err := s.threads.GetByID(ctx, in.ThreadID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load thread %s: %w", in.ThreadID, err))
	}
	if thread == nil {
		return nil, s.refuse(apperr.NotFound("thread"))
	}

	if in.ParentID != nil {
		if err := s.checkParent(ctx, *in.ParentID, thread.ID); err != nil {
			return nil, err
		}
	}

	// Why detach here and not earlier?
	//   - Up to this point nothing is written, so a cancelled request
	//     should stop validation and return.
	//   - From here on the insert, the counter update and the notify are
	//     one unit. If the client hangs up between the insert and
	//     ApplyActivity, a cancelled ctx would leave a stored message with
	//     no counter bump until the reconciler's next pass.
	//   - WithoutCancel keeps ctx values (request-scoped logging) but drops
	//     the deadline and cancellation. The bounded ApplyActivity retry
	//     caps how long the tail can run.
	ctx = context.WithoutCancel(ctx)

	msg, err := s.messages.Create(ctx, models.NewMessage{
		ThreadID:     thread.ID,
		ParentID:     in.ParentID,
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Content:      content,
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("insert message: %w", err))
	}

	kind := "top_level"
	if msg.IsReply() {
		kind = "reply"
	}
	observ.MessagesAccepted.WithLabelValues(kind).Inc()

	s.applyActivity(ctx, msg)
	s.notifier.MessageCreated(msg)

	s.logger.Debug("message posted",
		zap.Int64("message_id", msg.ID),
		zap.String("thread_id", msg.ThreadID.String()),
		zap.String("kind", kind),
	)
	return msg, nil
}

func (s *MessageService) checkParent(ctx context.Context, parentID int64, threadID uuid.UUID) error {
	parent, err := s.messages.GetByID(ctx, parentID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("load parent %d: %w", parentID, err))
	}
	switch {
	case parent == nil:
		return s.refuse(apperr.InvalidInput("parent message does not exist"))
	case parent.ThreadID != threadID:
		return s.refuse(apperr.InvalidInput("parent message belongs to a different thread"))
	case parent.IsReply():
		return s.refuse(apperr.InvalidInput("cannot reply to a reply"))
	}
	return nil
}

// applyActivity retries the counter update with exponential backoff. The
// update is idempotent, so a message that still fails stays pending and
// ReconcileActivity picks it up later. The post itself has succeeded.
func (s *MessageService) applyActivity(ctx context.Context, msg *models.Message) {
	var lastErr error
	for attempt := range s.activityAttempts {
		if attempt > 0 {
			observ.ActivityRetries.Inc()
			time.Sleep(s.activityBackoff << (attempt - 1))
		}
		_, err := s.threads.ApplyActivity(ctx, msg.ID)
		if err == nil {
			return
		}
		lastErr = err
	}

	observ.ActivityDeferred.Inc()
	s.logger.Error("thread activity update deferred to reconciler",
		zap.Error(lastErr),
		zap.Int64("message_id", msg.ID),
		zap.String("thread_id", msg.ThreadID.String()),
	)
}

// React increments one reaction counter of a message.
func (s *MessageService) React(ctx context.Context, author *Author, messageID int64, kind models.ReactionKind) (*models.Message, error) {
	if author == nil || author.ID == uuid.Nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if !kind.Valid() {
		return nil, apperr.InvalidInput("reaction must be up or down")
	}

	msg, err := s.messages.AddReaction(ctx, messageID, kind)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("react to message %d: %w", messageID, err))
	}
	if msg == nil {
		return nil, apperr.NotFound("message")
	}
	s.notifier.ReactionUpdated(msg)
	return msg, nil
}

// ReconcileActivity applies counter updates for messages the write path
// left pending. It returns how many it applied.
func (s *MessageService) ReconcileActivity(ctx context.Context) (int, error) {
	ids, err := s.messages.ListPendingActivity(ctx, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending activity: %w", err)
	}

	applied := 0
	for _, id := range ids {
		ok, err := s.threads.ApplyActivity(ctx, id)
		if err != nil {
			return applied, fmt.Errorf("apply activity for message %d: %w", id, err)
		}
		if ok {
			applied++
			observ.ActivityReconciled.Inc()
		}
	}
	return applied, nil
}

// RunReconciler calls ReconcileActivity every interval until ctx is done.
func (s *MessageService) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("activity reconciler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReconcileActivity(ctx)
			if err != nil {
				s.logger.Error("reconcile activity", zap.Error(err), zap.Int("applied", n))
				continue
			}
			if n > 0 {
				s.logger.Info("reconciled pending activity", zap.Int("applied", n))
			}
		}
	}
}

func (s *MessageService) refuse(err *apperr.Error) *apperr.Error {
	observ.MessagesRefused.WithLabelValues(string(err.Kind)).Inc()
	return err
}
