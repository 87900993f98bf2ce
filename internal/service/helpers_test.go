package service

import (
	"context"
	"sync"
	"testing"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/moderation"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/ayman-boop/ub-chat/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock repositories wrap a real one and override single methods.

type MockThreads struct {
	repository.ThreadRepository
	CreateFunc        func(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error)
	ApplyActivityFunc func(ctx context.Context, messageID int64) (bool, error)
}

func (m *MockThreads) Create(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, slug, in)
	}
	return m.ThreadRepository.Create(ctx, slug, in)
}

func (m *MockThreads) ApplyActivity(ctx context.Context, messageID int64) (bool, error) {
	if m.ApplyActivityFunc != nil {
		return m.ApplyActivityFunc(ctx, messageID)
	}
	return m.ThreadRepository.ApplyActivity(ctx, messageID)
}

type MockMessages struct {
	repository.MessageRepository
	CreateFunc      func(ctx context.Context, in models.NewMessage) (*models.Message, error)
	ListRepliesFunc func(ctx context.Context, parentID int64, page models.Page) ([]models.Message, int64, error)
}

func (m *MockMessages) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	return m.MessageRepository.Create(ctx, in)
}

func (m *MockMessages) ListReplies(ctx context.Context, parentID int64, page models.Page) ([]models.Message, int64, error) {
	if m.ListRepliesFunc != nil {
		return m.ListRepliesFunc(ctx, parentID, page)
	}
	return m.MessageRepository.ListReplies(ctx, parentID, page)
}

type recordingNotifier struct {
	mu        sync.Mutex
	created   []*models.Message
	reactions []*models.Message
}

func (n *recordingNotifier) MessageCreated(msg *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, msg)
}

func (n *recordingNotifier) ReactionUpdated(msg *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reactions = append(n.reactions, msg)
}

func (n *recordingNotifier) createdCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created)
}

type fixture struct {
	store    *memory.Store
	threads  *MockThreads
	messages *MockMessages
	notes    *recordingNotifier

	threadSvc  *ThreadService
	messageSvc *MessageService
	querySvc   *QueryService
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	store := memory.New(opts...)
	f := &fixture{
		store:    store,
		threads:  &MockThreads{ThreadRepository: store.Threads()},
		messages: &MockMessages{MessageRepository: store.Messages()},
		notes:    &recordingNotifier{},
	}
	logger := zap.NewNop()
	f.threadSvc = NewThreadService(f.threads, logger)
	f.messageSvc = NewMessageService(f.threads, f.messages, moderation.NewDefault(), logger,
		WithNotifier(f.notes),
		WithActivityRetry(3, 0),
		WithMaxContentLength(50),
	)
	f.querySvc = NewQueryService(f.threads, f.messages, logger)
	return f
}

func (f *fixture) thread(t *testing.T, title string) *models.Thread {
	t.Helper()
	th, err := f.threadSvc.CreateThread(context.Background(), models.NewThread{
		Title:    title,
		Category: models.CategoryGeneral,
	})
	require.NoError(t, err)
	return th
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Thread {
	t.Helper()
	th, err := f.store.Threads().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, th)
	return th
}

func testAuthor() *Author {
	return &Author{ID: uuid.New(), Handle: "SwiftBison1234"}
}

func ptr[T any](v T) *T { return &v }
