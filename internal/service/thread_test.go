package service

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  CSE 250: Data Structures!!  ", "cse-250-data-structures"},
		{"Is Prof. Smith's exam hard?", "is-prof-smiths-exam-hard"},
		{"a -- b __ c", "a-b-c"},
		{"???", "thread"},
		{strings.Repeat("x", 80), strings.Repeat("x", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, slugify(tt.title))
		})
	}
}

func TestCreateThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	th, err := f.threadSvc.CreateThread(ctx, models.NewThread{
		Title:      "  CSE 250 Midterm ",
		Category:   models.CategoryCourse,
		CourseCode: "CSE250",
	})
	require.NoError(t, err)
	assert.Equal(t, "CSE 250 Midterm", th.Title)
	assert.Regexp(t, regexp.MustCompile(`^cse-250-midterm-\d{6}$`), th.Slug)
	assert.Zero(t, th.MessageCount)
	assert.Equal(t, th.Created, th.LastActivity)

	got, err := f.threadSvc.GetThreadBySlug(ctx, th.Slug)
	require.NoError(t, err)
	assert.Equal(t, th.ID, got.ID)
}

func TestCreateThreadValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   models.NewThread
	}{
		{"missing title", models.NewThread{Title: "   ", Category: models.CategoryGeneral}},
		{"long title", models.NewThread{Title: strings.Repeat("t", maxTitleLength+1), Category: models.CategoryGeneral}},
		{"unknown category", models.NewThread{Title: "x", Category: "sports"}},
		{"course without code", models.NewThread{Title: "x", Category: models.CategoryCourse}},
		{"professor without name", models.NewThread{Title: "x", Category: models.CategoryProfessor, CourseCode: "CSE250"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.threadSvc.CreateThread(context.Background(), tt.in)
			assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "got %v", err)
		})
	}

	threads, _, err := f.threadSvc.ListThreads(context.Background(), models.ThreadFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestCreateThreadSlugRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var slugs []string
	f.threads.CreateFunc = func(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error) {
		slugs = append(slugs, slug)
		if len(slugs) < 3 {
			return nil, repository.ErrSlugTaken
		}
		return f.threads.ThreadRepository.Create(ctx, slug, in)
	}

	th, err := f.threadSvc.CreateThread(ctx, models.NewThread{Title: "Retry", Category: models.CategoryGeneral})
	require.NoError(t, err)
	assert.Len(t, slugs, 3)
	assert.Equal(t, slugs[2], th.Slug)

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		f.threads.CreateFunc = func(context.Context, string, models.NewThread) (*models.Thread, error) {
			calls++
			return nil, repository.ErrSlugTaken
		}
		_, err := f.threadSvc.CreateThread(ctx, models.NewThread{Title: "Retry", Category: models.CategoryGeneral})
		assert.True(t, apperr.Is(err, apperr.KindInternal))
		assert.Equal(t, slugAttempts, calls)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("connection refused")
		f.threads.CreateFunc = func(context.Context, string, models.NewThread) (*models.Thread, error) {
			return nil, boom
		}
		_, err := f.threadSvc.CreateThread(ctx, models.NewThread{Title: "Retry", Category: models.CategoryGeneral})
		assert.ErrorIs(t, err, boom)
		kind, msg := apperr.Public(err)
		assert.Equal(t, apperr.KindInternal, kind)
		assert.NotContains(t, msg, "connection refused")
	})
}

func TestListThreadsPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.thread(t, "thread")
	}

	threads, p, err := f.threadSvc.ListThreads(ctx, models.ThreadFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, threads, 5)
	assert.Equal(t, models.Pagination{Total: 5, Page: 1, Limit: DefaultThreadLimit, Pages: 1}, p)

	threads, p, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
	assert.Equal(t, int64(3), p.Pages)

	_, p, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{}, 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, p.Limit)

	threads, p, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{}, 9, 2)
	require.NoError(t, err)
	assert.NotNil(t, threads)
	assert.Empty(t, threads)
	assert.Equal(t, int64(5), p.Total)

	for _, tc := range []struct{ page, limit int }{
		{math.MaxInt, 100},
		{math.MaxInt / 50, 50},
		{math.MaxInt, 1},
	} {
		threads, p, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{}, tc.page, tc.limit)
		require.NoError(t, err, "page %d limit %d", tc.page, tc.limit)
		assert.NotNil(t, threads)
		assert.Empty(t, threads)
		assert.Equal(t, int64(5), p.Total)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        models.Page
	}{
		{"defaults", 0, 0, models.Page{Number: 1, Limit: DefaultThreadLimit}},
		{"negative", -3, -1, models.Page{Number: 1, Limit: DefaultThreadLimit}},
		{"limit capped", 2, 1000, models.Page{Number: 2, Limit: MaxPageLimit}},
		{"huge page", math.MaxInt, 100, models.Page{Number: math.MaxInt / 100, Limit: 100}},
		{"huge page small limit", math.MaxInt, 1, models.Page{Number: math.MaxInt, Limit: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampPage(tt.page, tt.limit, DefaultThreadLimit)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Offset(), 0)
		})
	}
}

func TestListThreadsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.threadSvc.CreateThread(ctx, models.NewThread{Title: "Prof Hartloff", Category: models.CategoryProfessor, ProfessorName: "Jesse Hartloff"})
	require.NoError(t, err)
	_, err = f.threadSvc.CreateThread(ctx, models.NewThread{Title: "Dining hall", Category: models.CategoryGeneral})
	require.NoError(t, err)

	threads, p, err := f.threadSvc.ListThreads(ctx, models.ThreadFilter{Category: models.CategoryProfessor}, 1, 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, int64(1), p.Total)
	assert.Equal(t, "Jesse Hartloff", threads[0].ProfessorName)

	threads, _, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{Search: "  dining "}, 1, 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Dining hall", threads[0].Title)

	_, _, err = f.threadSvc.ListThreads(ctx, models.ThreadFilter{Category: "sports"}, 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestGetThreadBySlugNotFound(t *testing.T) {
	f := newFixture(t)
	for _, slug := range []string{"", "nope-123456"} {
		_, err := f.threadSvc.GetThreadBySlug(context.Background(), slug)
		assert.True(t, apperr.Is(err, apperr.KindNotFound), "slug %q: %v", slug, err)
	}
}
