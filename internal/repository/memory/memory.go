// Package memory is an in-process implementation of the repository
// interfaces. It backs the service tests and STORE=memory development runs.
//
// One Store holds users, threads and messages behind a single mutex so the
// cross-table ApplyActivity step is atomic the same way the SQL statement is.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/google/uuid"
)

type messageRecord struct {
	msg     models.Message
	applied bool
}

type Store struct {
	mu sync.RWMutex

	now func() time.Time

	threads     map[uuid.UUID]*models.Thread
	threadSlugs map[string]uuid.UUID

	messages map[int64]*messageRecord
	nextID   int64

	users       map[uuid.UUID]*models.User
	userHandles map[string]uuid.UUID
	userDigests map[string]uuid.UUID
}

// Option tweaks a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests that need controlled timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		threads:     make(map[uuid.UUID]*models.Thread),
		threadSlugs: make(map[string]uuid.UUID),
		messages:    make(map[int64]*messageRecord),
		users:       make(map[uuid.UUID]*models.User),
		userHandles: make(map[string]uuid.UUID),
		userDigests: make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Health(context.Context) error { return nil }

// Threads returns the thread repository view of the store.
func (s *Store) Threads() repository.ThreadRepository { return threadRepo{s} }

// Messages returns the message repository view of the store.
func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type threadRepo struct{ s *Store }

func (r threadRepo) Create(ctx context.Context, slug string, in models.NewThread) (*models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.threadSlugs[slug]; taken {
		return nil, repository.ErrSlugTaken
	}
	now := s.now()
	t := &models.Thread{
		ID:            uuid.New(),
		Slug:          slug,
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		CourseCode:    in.CourseCode,
		ProfessorName: in.ProfessorName,
		Created:       now,
		LastActivity:  now,
	}
	s.threads[t.ID] = t
	s.threadSlugs[slug] = t.ID
	out := *t
	return &out, nil
}

func (r threadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.threads[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (r threadRepo) GetBySlug(ctx context.Context, slug string) (*models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.threadSlugs[slug]
	if !ok {
		return nil, nil
	}
	out := *r.s.threads[id]
	return &out, nil
}

type scoredThread struct {
	t     models.Thread
	score int
}

func (r threadRepo) List(ctx context.Context, filter models.ThreadFilter, page models.Page) ([]models.Thread, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	terms := strings.Fields(strings.ToLower(filter.Search))

	r.s.mu.RLock()
	matched := make([]scoredThread, 0, len(r.s.threads))
	for _, t := range r.s.threads {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		score := 0
		if len(terms) > 0 {
			score = searchScore(t, terms)
			if score == 0 {
				continue
			}
		}
		matched = append(matched, scoredThread{t: *t, score: score})
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.t.LastActivity.Equal(b.t.LastActivity) {
			return a.t.LastActivity.After(b.t.LastActivity)
		}
		return a.t.ID.String() > b.t.ID.String()
	})

	total := int64(len(matched))
	out := make([]models.Thread, 0, page.Limit)
	for _, st := range window(matched, page) {
		out = append(out, st.t)
	}
	return out, total, nil
}

// searchScore counts term hits across the searchable fields. A thread with
// no hits does not match.
func searchScore(t *models.Thread, terms []string) int {
	words := strings.Fields(strings.ToLower(strings.Join(
		[]string{t.Title, t.Description, t.CourseCode, t.ProfessorName}, " ")))
	score := 0
	for _, term := range terms {
		for _, w := range words {
			if w == term {
				score++
			}
		}
	}
	return score
}

func (r threadRepo) ApplyActivity(ctx context.Context, messageID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[messageID]
	if !ok || rec.applied {
		return false, nil
	}
	t, ok := s.threads[rec.msg.ThreadID]
	if !ok {
		return false, fmt.Errorf("apply activity: thread %s missing", rec.msg.ThreadID)
	}
	rec.applied = true
	if !rec.msg.IsReply() {
		t.MessageCount++
	}
	if rec.msg.Created.After(t.LastActivity) {
		t.LastActivity = rec.msg.Created
	}
	return true, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[in.ThreadID]; !ok {
		return nil, fmt.Errorf("insert message: thread %s does not exist", in.ThreadID)
	}
	if in.ParentID != nil {
		if _, ok := s.messages[*in.ParentID]; !ok {
			return nil, fmt.Errorf("insert message: parent %d does not exist", *in.ParentID)
		}
	}

	s.nextID++
	msg := models.Message{
		ID:           s.nextID,
		ThreadID:     in.ThreadID,
		AuthorID:     in.AuthorID,
		AuthorHandle: in.AuthorHandle,
		Content:      in.Content,
		Created:      s.now(),
	}
	if in.ParentID != nil {
		pid := *in.ParentID
		msg.ParentID = &pid
	}
	s.messages[msg.ID] = &messageRecord{msg: msg}
	return copyMessage(msg), nil
}

func (r messageRepo) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(rec.msg), nil
}

func (r messageRepo) ListTopLevel(ctx context.Context, threadID uuid.UUID, page models.Page) ([]models.Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	all := r.collect(func(m *models.Message) bool {
		return m.ThreadID == threadID && m.ParentID == nil
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Created.Equal(all[j].Created) {
			return all[i].Created.After(all[j].Created)
		}
		return all[i].ID > all[j].ID
	})
	return window(all, page), int64(len(all)), nil
}

func (r messageRepo) ListReplies(ctx context.Context, parentID int64, page models.Page) ([]models.Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	all := r.collect(func(m *models.Message) bool {
		return m.ParentID != nil && *m.ParentID == parentID
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Created.Equal(all[j].Created) {
			return all[i].Created.Before(all[j].Created)
		}
		return all[i].ID < all[j].ID
	})
	return window(all, page), int64(len(all)), nil
}

func (r messageRepo) collect(keep func(*models.Message) bool) []models.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.Message, 0)
	for _, rec := range r.s.messages {
		if keep(&rec.msg) {
			out = append(out, *copyMessage(rec.msg))
		}
	}
	return out
}

func (r messageRepo) AddReaction(ctx context.Context, id int64, kind models.ReactionKind) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	switch kind {
	case models.ReactionUp:
		rec.msg.Reactions.Up++
	case models.ReactionDown:
		rec.msg.Reactions.Down++
	default:
		return nil, fmt.Errorf("unknown reaction kind %q", kind)
	}
	return copyMessage(rec.msg), nil
}

func (r messageRepo) ListPendingActivity(ctx context.Context, limit int) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	ids := make([]int64, 0)
	for id, rec := range r.s.messages {
		if !rec.applied {
			ids = append(ids, id)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, handle, emailDigest string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.userHandles[handle]; taken {
		return nil, repository.ErrHandleTaken
	}
	if _, taken := s.userDigests[emailDigest]; taken {
		return nil, repository.ErrEmailTaken
	}
	u := &models.User{
		ID:          uuid.New(),
		Handle:      handle,
		EmailDigest: emailDigest,
		Joined:      s.now(),
	}
	s.users[u.ID] = u
	s.userHandles[handle] = u.ID
	s.userDigests[emailDigest] = u.ID
	out := *u
	return &out, nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r userRepo) GetByEmailDigest(ctx context.Context, digest string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.userDigests[digest]
	if !ok {
		return nil, nil
	}
	out := *r.s.users[id]
	return &out, nil
}

func copyMessage(m models.Message) *models.Message {
	if m.ParentID != nil {
		pid := *m.ParentID
		m.ParentID = &pid
	}
	return &m
}

func window[T any](items []T, page models.Page) []T {
	start := page.Offset()
	if start < 0 || start >= len(items) || page.Limit <= 0 {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
