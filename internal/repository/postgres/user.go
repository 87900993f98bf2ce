package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Handle, &u.EmailDigest, &u.Joined); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Postgres generates the UUID and timestamp.
func (s *UserStore) Create(ctx context.Context, handle, emailDigest string) (*models.User, error) {
	query := `
		INSERT INTO users (handle, email_digest, joined_at)
		VALUES ($1, $2, now())
		RETURNING id, handle, email_digest, joined_at`

	u, err := scanUser(s.pool.QueryRow(ctx, query, handle, emailDigest))
	if err != nil {
		switch violatedConstraint(err) {
		case "users_handle_key":
			return nil, repository.ErrHandleTaken
		case "users_email_digest_key":
			return nil, repository.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, handle, email_digest, joined_at
		FROM users
		WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmailDigest is the sign-in lookup.
func (s *UserStore) GetByEmailDigest(ctx context.Context, digest string) (*models.User, error) {
	query := `
		SELECT id, handle, email_digest, joined_at
		FROM users
		WHERE email_digest = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}
