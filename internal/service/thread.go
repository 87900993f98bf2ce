// Package service holds the campus discussion rules: thread creation and
// listing, composed thread views, and the message write path.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultThreadLimit  = 20
	DefaultMessageLimit = 50
	MaxPageLimit        = 100

	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxFieldLength       = 100
	maxSlugBase          = 60
	slugAttempts         = 5
)

var (
	slugStrip  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	slugSpaces = regexp.MustCompile(`[\s_-]+`)
)

type ThreadService struct {
	threads repository.ThreadRepository
	logger  *zap.Logger
}

func NewThreadService(threads repository.ThreadRepository, logger *zap.Logger) *ThreadService {
	return &ThreadService{threads: threads, logger: logger}
}

// CreateThread validates the input and stores a thread under a fresh slug.
func (s *ThreadService) CreateThread(ctx context.Context, in models.NewThread) (*models.Thread, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CourseCode = strings.TrimSpace(in.CourseCode)
	in.ProfessorName = strings.TrimSpace(in.ProfessorName)

	if err := validateThread(in); err != nil {
		return nil, err
	}

	base := slugify(in.Title)
	for range slugAttempts {
		slug := fmt.Sprintf("%s-%06d", base, rand.IntN(1_000_000))
		thread, err := s.threads.Create(ctx, slug, in)
		if errors.Is(err, repository.ErrSlugTaken) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("create thread: %w", err))
		}
		s.logger.Info("thread created",
			zap.String("thread_id", thread.ID.String()),
			zap.String("slug", thread.Slug),
			zap.String("category", string(thread.Category)),
		)
		return thread, nil
	}
	return nil, apperr.Internal(fmt.Errorf("create thread: no free slug for %q after %d attempts", base, slugAttempts))
}

func validateThread(in models.NewThread) error {
	switch {
	case in.Title == "":
		return apperr.InvalidInput("title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return apperr.InvalidInput(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return apperr.InvalidInput(fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	case !in.Category.Valid():
		return apperr.InvalidInput("category must be professor, course or general")
	case in.Category == models.CategoryCourse && in.CourseCode == "":
		return apperr.InvalidInput("courseCode is required for course threads")
	case in.Category == models.CategoryProfessor && in.ProfessorName == "":
		return apperr.InvalidInput("professorName is required for professor threads")
	case utf8.RuneCountInString(in.CourseCode) > maxFieldLength,
		utf8.RuneCountInString(in.ProfessorName) > maxFieldLength:
		return apperr.InvalidInput(fmt.Sprintf("courseCode and professorName must be at most %d characters", maxFieldLength))
	}
	return nil
}

// slugify lowercases the title, drops punctuation and joins words with
// dashes, capped at maxSlugBase runes.
func slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")

	if r := []rune(s); len(r) > maxSlugBase {
		s = string(r[:maxSlugBase])
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "thread"
	}
	return s
}

// ListThreads returns one page of threads plus pagination metadata.
func (s *ThreadService) ListThreads(ctx context.Context, filter models.ThreadFilter, page, limit int) ([]models.Thread, models.Pagination, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, models.Pagination{}, apperr.InvalidInput("unknown category")
	}

	p := ClampPage(page, limit, DefaultThreadLimit)
	threads, total, err := s.threads.List(ctx, filter, p)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(fmt.Errorf("list threads: %w", err))
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	return threads, models.NewPagination(total, p), nil
}

func (s *ThreadService) GetThreadBySlug(ctx context.Context, slug string) (*models.Thread, error) {
	return threadBySlug(ctx, s.threads, slug)
}

// threadBySlug is the one slug lookup shared by every service.
func threadBySlug(ctx context.Context, threads repository.ThreadRepository, slug string) (*models.Thread, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperr.NotFound("thread")
	}
	thread, err := threads.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get thread %q: %w", slug, err))
	}
	if thread == nil {
		return nil, apperr.NotFound("thread")
	}
	return thread, nil
}

// ClampPage normalises client paging: page < 1 is 1, limit < 1 is def and
// limit is capped at MaxPageLimit. page is capped so that Offset cannot
// overflow; a capped page is still far past any real data and comes back
// empty.
func ClampPage(page, limit, def int) models.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return models.Page{Number: page, Limit: limit}
}
