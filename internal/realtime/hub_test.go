package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(buffer int) *Hub {
	return NewHub(buffer, zap.NewNop())
}

func created(threadID uuid.UUID, id int64) Event {
	return MessageCreated(&models.Message{ID: id, ThreadID: threadID, Content: "hi"})
}

// pending returns the envelopes queued for s without blocking.
func pending(s *Session) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-s.Outbound():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubJoinPublishLeave(t *testing.T) {
	h := newTestHub(8)
	thread := uuid.New()

	a := h.Connect(uuid.New(), "A")
	b := h.Connect(uuid.New(), "B")
	outsider := h.Connect(uuid.New(), "C")
	assert.Equal(t, StateConnected, a.State())

	require.NoError(t, h.Join(a, thread))
	require.NoError(t, h.Join(b, thread))
	require.NoError(t, h.Join(a, thread), "join is idempotent")
	assert.Equal(t, 2, h.Subscribers(thread))
	assert.Equal(t, StateSubscribed, a.State())

	assert.Equal(t, 2, h.Publish(created(thread, 1)))
	for _, s := range []*Session{a, b} {
		got := pending(s)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].Event.Message.ID)
	}
	assert.Empty(t, pending(outsider))

	h.Leave(b, thread)
	h.Leave(b, thread)
	assert.Equal(t, StateConnected, b.State())
	assert.Equal(t, 1, h.Publish(created(thread, 2)))
	assert.Empty(t, pending(b))
	assert.Len(t, pending(a), 1)
}

func TestHubLateJoinerMissesEarlierEvents(t *testing.T) {
	h := newTestHub(8)
	thread := uuid.New()
	early := h.Connect(uuid.New(), "early")
	require.NoError(t, h.Join(early, thread))

	h.Publish(created(thread, 1))

	late := h.Connect(uuid.New(), "late")
	require.NoError(t, h.Join(late, thread))
	h.Publish(created(thread, 2))

	assert.Len(t, pending(early), 2)
	got := pending(late)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Event.Message.ID)
}

func TestHubJoinMovesSession(t *testing.T) {
	h := newTestHub(8)
	first, second := uuid.New(), uuid.New()
	s := h.Connect(uuid.New(), "mover")

	require.NoError(t, h.Join(s, first))
	require.NoError(t, h.Join(s, second))

	assert.Equal(t, 0, h.Subscribers(first))
	assert.Equal(t, 1, h.Subscribers(second))
	id, ok := s.ThreadID()
	assert.True(t, ok)
	assert.Equal(t, second, id)

	assert.Zero(t, h.Publish(created(first, 1)))
	assert.Equal(t, 1, h.Publish(created(second, 2)))

	h.Leave(s, first)
	assert.True(t, s.SubscribedTo(second), "leaving a thread it is not in is a no-op")
}

func TestHubLeftBeforeWriteIsFiltered(t *testing.T) {
	h := newTestHub(8)
	thread := uuid.New()
	s := h.Connect(uuid.New(), "x")
	require.NoError(t, h.Join(s, thread))

	h.Publish(created(thread, 1))
	h.Leave(s, thread)

	got := pending(s)
	require.Len(t, got, 1)
	assert.False(t, s.SubscribedTo(got[0].Event.ThreadID), "the writer skips it")
}

func TestHubDropsSlowSession(t *testing.T) {
	h := newTestHub(2)
	thread := uuid.New()
	slow := h.Connect(uuid.New(), "slow")
	fast := h.Connect(uuid.New(), "fast")
	require.NoError(t, h.Join(slow, thread))
	require.NoError(t, h.Join(fast, thread))

	for i := int64(1); i <= 2; i++ {
		assert.Equal(t, 2, h.Publish(created(thread, i)))
		pending(fast)
	}

	// slow never drained; the third event overflows its queue
	done := make(chan int)
	go func() { done <- h.Publish(created(thread, 3)) }()
	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow session")
	}

	assert.Equal(t, StateDisconnected, slow.State())
	assert.Equal(t, 1, h.Subscribers(thread))
	assert.Len(t, pending(slow), 2, "queued events stay readable until the writer exits")
	_, open := <-slow.Outbound()
	assert.False(t, open)
}

func TestHubDisconnect(t *testing.T) {
	h := newTestHub(8)
	thread := uuid.New()
	s := h.Connect(uuid.New(), "gone")
	require.NoError(t, h.Join(s, thread))

	h.Disconnect(s)
	h.Disconnect(s)

	assert.Equal(t, StateDisconnected, s.State())
	assert.Zero(t, h.Subscribers(thread))
	assert.ErrorIs(t, h.Join(s, thread), ErrSessionClosed)
	assert.False(t, s.Reply("late"))
	assert.Zero(t, h.Publish(created(thread, 1)))

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.channels, "empty channels are removed")
}

func TestHubConcurrentChurn(t *testing.T) {
	h := newTestHub(1024)
	threads := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	stable := h.Connect(uuid.New(), "stable")
	require.NoError(t, h.Join(stable, threads[0]))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := h.Connect(uuid.New(), "churn")
			for j := 0; j < 50; j++ {
				_ = h.Join(s, threads[(i+j)%len(threads)])
				if j%3 == 0 {
					h.Leave(s, threads[(i+j)%len(threads)])
				}
			}
			h.Disconnect(s)
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Publish(created(threads[j%len(threads)], int64(j)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.Subscribers(threads[0]))
	assert.Zero(t, h.Subscribers(threads[1]))
	assert.Zero(t, h.Subscribers(threads[2]))
	assert.Equal(t, 1, h.Publish(created(threads[0], 999)))
}
