package repository

import (
	"context"
	"errors"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
)

// Lookups return (nil, nil) when the row does not exist. Callers decide
// whether absence is an error.

// Unique-key violations are reported with these sentinels so callers can
// retry with a fresh value.
var (
	ErrSlugTaken   = errors.New("slug already taken")
	ErrHandleTaken = errors.New("handle already taken")
	ErrEmailTaken  = errors.New("email already registered")
)

// ThreadRepository owns thread records and their aggregate counters.
type ThreadRepository interface {
	// Create inserts a thread with MessageCount 0 and Created = LastActivity.
	Create(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error)

	GetBySlug(ctx context.Context, slug string) (*models.Thread, error)

	// List returns one page of threads plus the filtered total. Without a
	// search term the order is LastActivity desc; with one it is relevance
	// desc, then LastActivity desc.
	List(ctx context.Context, filter models.ThreadFilter, page models.Page) ([]models.Thread, int64, error)

	// ApplyActivity folds one message into its thread's counters exactly
	// once: MessageCount += 1 for top-level messages, and LastActivity is
	// raised to the message's Created. Returns false when the message was
	// already applied (or does not exist), so retries are safe.
	ApplyActivity(ctx context.Context, messageID int64) (bool, error)
}

// MessageRepository owns messages, replies and reaction counters.
type MessageRepository interface {
	// Create persists a message. The store assigns ID and Created.
	Create(ctx context.Context, in models.NewMessage) (*models.Message, error)

	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// ListTopLevel returns top-level messages of a thread, newest first,
	// plus the number of top-level messages in the thread.
	ListTopLevel(ctx context.Context, threadID uuid.UUID, page models.Page) ([]models.Message, int64, error)

	// ListReplies returns replies to a message, oldest first, plus the live
	// reply count.
	ListReplies(ctx context.Context, parentID int64, page models.Page) ([]models.Message, int64, error)

	// AddReaction atomically increments one reaction counter and returns the
	// updated message, or (nil, nil) if it does not exist.
	AddReaction(ctx context.Context, id int64, kind models.ReactionKind) (*models.Message, error)

	// ListPendingActivity returns IDs of messages whose ApplyActivity has
	// not happened yet, oldest first.
	ListPendingActivity(ctx context.Context, limit int) ([]int64, error)
}

// UserRepository stores anonymous identities.
type UserRepository interface {
	Create(ctx context.Context, handle, emailDigest string) (*models.User, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	GetByEmailDigest(ctx context.Context, digest string) (*models.User, error)
}

// HealthChecker is implemented by anything the health endpoint should ping.
type HealthChecker interface {
	Health(ctx context.Context) error
}
