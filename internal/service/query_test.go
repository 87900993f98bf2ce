package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetThreadView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := testAuthor()
	th := f.thread(t, "View")

	var tops []*models.Message
	for i := 0; i < 3; i++ {
		m, err := f.messageSvc.PostMessage(ctx, author, PostInput{ThreadID: th.ID, Content: fmt.Sprintf("top %d", i)})
		require.NoError(t, err)
		tops = append(tops, m)
	}
	busy := tops[0]
	for i := 0; i < 12; i++ {
		_, err := f.messageSvc.PostMessage(ctx, author, PostInput{ThreadID: th.ID, ParentID: &busy.ID, Content: fmt.Sprintf("reply %d", i)})
		require.NoError(t, err)
	}

	view, err := f.querySvc.GetThreadView(ctx, th.Slug, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, th.ID, view.Thread.ID)
	assert.Equal(t, int64(3), view.Thread.MessageCount)
	assert.Equal(t, models.Pagination{Total: 3, Page: 1, Limit: DefaultMessageLimit, Pages: 1}, view.Pagination)

	require.Len(t, view.Messages, 3)
	assert.Equal(t, tops[2].ID, view.Messages[0].ID, "newest top-level first")
	assert.Equal(t, tops[0].ID, view.Messages[2].ID)

	for _, m := range view.Messages {
		assert.GreaterOrEqual(t, m.RepliesCount, int64(len(m.Replies)))
		assert.NotNil(t, m.Replies)
	}

	withReplies := view.Messages[2]
	assert.Equal(t, int64(12), withReplies.RepliesCount)
	require.Len(t, withReplies.Replies, ReplyPreviewLimit)
	assert.Equal(t, "reply 0", withReplies.Replies[0].Content, "oldest reply first")
	for i := 1; i < len(withReplies.Replies); i++ {
		assert.Less(t, withReplies.Replies[i-1].ID, withReplies.Replies[i].ID)
	}
}

func TestGetThreadViewPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.thread(t, "Paging")
	for i := 0; i < 5; i++ {
		_, err := f.messageSvc.PostMessage(ctx, testAuthor(), PostInput{ThreadID: th.ID, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	view, err := f.querySvc.GetThreadView(ctx, th.Slug, 2, 2)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "m2", view.Messages[0].Content)
	assert.Equal(t, "m1", view.Messages[1].Content)
	assert.Equal(t, int64(3), view.Pagination.Pages)

	view, err = f.querySvc.GetThreadView(ctx, th.Slug, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, view.Messages)
	assert.Equal(t, int64(5), view.Pagination.Total)
}

func TestGetThreadViewErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.querySvc.GetThreadView(ctx, "does-not-exist", 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	th := f.thread(t, "Replies fail")
	_, err = f.messageSvc.PostMessage(ctx, testAuthor(), PostInput{ThreadID: th.ID, Content: "x"})
	require.NoError(t, err)

	boom := errors.New("replica lag")
	f.messages.ListRepliesFunc = func(context.Context, int64, models.Page) ([]models.Message, int64, error) {
		return nil, 0, boom
	}
	_, err = f.querySvc.GetThreadView(ctx, th.Slug, 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, boom)
}

func TestListReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.thread(t, "Show more")
	top, err := f.messageSvc.PostMessage(ctx, testAuthor(), PostInput{ThreadID: th.ID, Content: "root"})
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		_, err := f.messageSvc.PostMessage(ctx, testAuthor(), PostInput{ThreadID: th.ID, ParentID: &top.ID, Content: fmt.Sprintf("r%d", i)})
		require.NoError(t, err)
	}

	replies, p, err := f.querySvc.ListReplies(ctx, top.ID, 2, 10)
	require.NoError(t, err)
	require.Len(t, replies, 5)
	assert.Equal(t, "r10", replies[0].Content)
	assert.Equal(t, models.Pagination{Total: 15, Page: 2, Limit: 10, Pages: 2}, p)

	replies, p, err = f.querySvc.ListReplies(ctx, top.ID, math.MaxInt, 10)
	require.NoError(t, err)
	assert.NotNil(t, replies)
	assert.Empty(t, replies)
	assert.Equal(t, int64(15), p.Total)

	_, _, err = f.querySvc.ListReplies(ctx, 987654, 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetThreadViewSlugLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.thread(t, "Padded")
	_, err := f.messageSvc.PostMessage(ctx, testAuthor(), PostInput{ThreadID: th.ID, Content: "hi"})
	require.NoError(t, err)

	view, err := f.querySvc.GetThreadView(ctx, "  "+th.Slug+"\t", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, th.ID, view.Thread.ID)

	byService, err := f.threadSvc.GetThreadBySlug(ctx, " "+th.Slug+" ")
	require.NoError(t, err)
	assert.Equal(t, th.ID, byService.ID)

	_, err = f.querySvc.GetThreadView(ctx, "   ", 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	view, err = f.querySvc.GetThreadView(ctx, th.Slug, math.MaxInt, 50)
	require.NoError(t, err)
	assert.NotNil(t, view.Messages)
	assert.Empty(t, view.Messages)
	assert.Equal(t, int64(1), view.Pagination.Total)
}
