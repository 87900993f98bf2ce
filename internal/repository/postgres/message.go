package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, thread_id, parent_id, author_id, author_handle, content, created_at,
	reactions_up, reactions_down`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	if err := row.Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.ParentID,
		&msg.AuthorID,
		&msg.AuthorHandle,
		&msg.Content,
		&msg.Created,
		&msg.Reactions.Up,
		&msg.Reactions.Down,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	// bigserial id and created_at come from Postgres. activity_applied
	// starts false; ThreadStore.ApplyActivity flips it.
	query := `
		INSERT INTO messages (thread_id, parent_id, author_id, author_handle, content, created_at)
		VALUES ($1, $2, $3, $4, $5, clock_timestamp())
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query,
		in.ThreadID,
		in.ParentID,
		in.AuthorID,
		in.AuthorHandle,
		in.Content,
	))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListTopLevel(ctx context.Context, threadID uuid.UUID, page models.Page) ([]models.Message, int64, error) {
	return s.listPage(ctx,
		`SELECT count(*) FROM messages WHERE thread_id = $1 AND parent_id IS NULL`,
		`SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = $1 AND parent_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		threadID, page)
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID int64, page models.Page) ([]models.Message, int64, error) {
	return s.listPage(ctx,
		`SELECT count(*) FROM messages WHERE parent_id = $1`,
		`SELECT `+messageColumns+`
		FROM messages
		WHERE parent_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`,
		parentID, page)
}

// listPage runs a count and a page query keyed by the same first argument.
func (s *MessageStore) listPage(ctx context.Context, countQuery, listQuery string, key any, page models.Page) ([]models.Message, int64, error) {
	batch := &pgx.Batch{}
	batch.Queue(countQuery, key)
	batch.Queue(listQuery, key, page.Limit, page.Offset())
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var total int64
	if err := br.QueryRow().Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, total, nil
}

func (s *MessageStore) AddReaction(ctx context.Context, id int64, kind models.ReactionKind) (*models.Message, error) {
	var column string
	switch kind {
	case models.ReactionUp:
		column = "reactions_up"
	case models.ReactionDown:
		column = "reactions_down"
	default:
		return nil, fmt.Errorf("unknown reaction kind %q", kind)
	}

	query := `UPDATE messages SET ` + column + ` = ` + column + ` + 1
		WHERE id = $1
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("add reaction: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListPendingActivity(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT id FROM messages
		WHERE NOT activity_applied
		ORDER BY id
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending activity: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect pending activity: %w", err)
	}
	return ids, nil
}
