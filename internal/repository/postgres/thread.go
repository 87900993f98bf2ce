package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const threadColumns = `id, slug, title, description, category, course_code, professor_name,
	created_at, last_activity, message_count`

type ThreadStore struct {
	pool *pgxpool.Pool
}

func NewThreadStore(pool *pgxpool.Pool) *ThreadStore {
	return &ThreadStore{pool: pool}
}

func scanThread(row pgx.Row) (*models.Thread, error) {
	var t models.Thread
	var category string
	if err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.Title,
		&t.Description,
		&category,
		&t.CourseCode,
		&t.ProfessorName,
		&t.Created,
		&t.LastActivity,
		&t.MessageCount,
	); err != nil {
		return nil, err
	}
	t.Category = models.Category(category)
	return &t, nil
}

func (s *ThreadStore) Create(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error) {
	// created_at and last_activity share one now() so last_activity >= created_at
	// holds from the first row version.
	query := `
		INSERT INTO threads (slug, title, description, category, course_code, professor_name, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING ` + threadColumns

	t, err := scanThread(s.pool.QueryRow(ctx, query,
		slug,
		in.Title,
		in.Description,
		string(in.Category),
		in.CourseCode,
		in.ProfessorName,
	))
	if err != nil {
		if violatedConstraint(err) == "threads_slug_key" {
			return nil, repository.ErrSlugTaken
		}
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

func (s *ThreadStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE id = $1`

	t, err := scanThread(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

func (s *ThreadStore) GetBySlug(ctx context.Context, slug string) (*models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE slug = $1`

	t, err := scanThread(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread by slug: %w", err)
	}
	return t, nil
}

func (s *ThreadStore) List(ctx context.Context, filter models.ThreadFilter, page models.Page) ([]models.Thread, int64, error) {
	var (
		where []string
		args  []any
		order = "last_activity DESC, id DESC"
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		n := len(args)
		where = append(where, fmt.Sprintf("search @@ websearch_to_tsquery('simple', $%d)", n))
		order = fmt.Sprintf("ts_rank(search, websearch_to_tsquery('simple', $%d)) DESC, last_activity DESC, id DESC", n)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	listArgs := make([]any, 0, len(args)+2)
	listArgs = append(listArgs, args...)
	listArgs = append(listArgs, page.Limit, page.Offset())
	listQuery := fmt.Sprintf(`SELECT %s FROM threads %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		threadColumns, clause, order, len(args)+1, len(args)+2)

	// Count and page go out in one round trip.
	batch := &pgx.Batch{}
	batch.Queue(`SELECT count(*) FROM threads `+clause, args...)
	batch.Queue(listQuery, listArgs...)
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var total int64
	if err := br.QueryRow().Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := make([]models.Thread, 0)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate threads: %w", err)
	}
	return threads, total, nil
}

// ApplyActivity folds one message into its thread's message_count and
// last_activity. It reports whether this call did the work; false means the
// message was already applied (or does not exist).
//
// Why a single CTE instead of SELECT-then-UPDATE in a transaction?
//   - The read-modify-write happens inside Postgres. Two posts in the same
//     thread serialize on the thread row and each UPDATE re-reads
//     message_count, so no increment is lost.
//   - The activity_applied flag is flipped in the same statement. A retry
//     or the reconciler racing the write path blocks on the message row
//     lock, then sees the flag set and matches nothing: applying twice is
//     a no-op, not a double count.
//   - GREATEST keeps last_activity monotonic when messages are applied out
//     of order (the reconciler picks up an old one after a newer one).
//   - One round trip, no explicit transaction to leak on error.
func (s *ThreadStore) ApplyActivity(ctx context.Context, messageID int64) (bool, error) {
	query := `
		WITH applied AS (
			UPDATE messages
			SET activity_applied = true
			WHERE id = $1 AND NOT activity_applied
			RETURNING thread_id, parent_id IS NULL AS top_level, created_at
		)
		UPDATE threads t
		SET message_count = t.message_count + CASE WHEN a.top_level THEN 1 ELSE 0 END,
		    last_activity = GREATEST(t.last_activity, a.created_at)
		FROM applied a
		WHERE t.id = a.thread_id`

	tag, err := s.pool.Exec(ctx, query, messageID)
	if err != nil {
		return false, fmt.Errorf("apply activity: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
