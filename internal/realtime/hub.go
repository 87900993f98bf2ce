package realtime

import (
	"sync"

	"github.com/ayman-boop/ub-chat/internal/observ"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// channel is the subscriber set of one thread. It has its own lock so
// publishing to one thread never waits on another. A channel that emptied
// out is marked dead before it is removed from the Hub; joiners that raced
// the removal retry against a fresh channel.
type channel struct {
	mu   sync.RWMutex
	subs map[*Session]struct{}
	dead bool
}

// Hub tracks which sessions watch which thread.
//
// Lock order is session, then hub, then channel. Publish snapshots the
// subscriber set and releases every hub lock before touching sessions.
type Hub struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]*channel

	buffer int
	logger *zap.Logger
}

func NewHub(outboundBuffer int, logger *zap.Logger) *Hub {
	if outboundBuffer <= 0 {
		outboundBuffer = 32
	}
	return &Hub{
		channels: make(map[uuid.UUID]*channel),
		buffer:   outboundBuffer,
		logger:   logger,
	}
}

// Connect registers a new session in the Connected state.
func (h *Hub) Connect(userID uuid.UUID, handle string) *Session {
	s := newSession(userID, handle, h.buffer)
	observ.RealtimeSessions.Inc()
	h.logger.Debug("session connected",
		zap.String("session_id", s.ID.String()),
		zap.String("handle", handle),
	)
	return s
}

// Join subscribes s to threadID. A session watches one thread at a time, so
// joining a second thread leaves the first. Joining the current thread again
// is a no-op.
func (h *Hub) Join(s *Session, threadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDisconnected:
		return ErrSessionClosed
	case StateSubscribed:
		if s.threadID == threadID {
			return nil
		}
		h.remove(s, s.threadID)
	default:
		observ.RealtimeSubscriptions.Inc()
	}

	h.add(s, threadID)
	s.state = StateSubscribed
	s.threadID = threadID
	return nil
}

// Leave drops the subscription to threadID, if s holds it.
func (h *Hub) Leave(s *Session, threadID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubscribed || s.threadID != threadID {
		return
	}
	h.remove(s, threadID)
	s.state = StateConnected
	s.threadID = uuid.Nil
	observ.RealtimeSubscriptions.Dec()
}

// Disconnect removes s from its thread and closes its outbound queue. It is
// safe to call more than once and from any goroutine.
func (h *Hub) Disconnect(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return
	}
	if s.state == StateSubscribed {
		h.remove(s, s.threadID)
		observ.RealtimeSubscriptions.Dec()
	}
	s.state = StateDisconnected
	s.threadID = uuid.Nil
	close(s.outbound)
	observ.RealtimeSessions.Dec()

	h.logger.Debug("session disconnected", zap.String("session_id", s.ID.String()))
}

// Publish queues ev for every session subscribed to ev.ThreadID at this
// moment. It never blocks: a session whose queue is full is disconnected.
// It returns the number of sessions the event was queued for.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	ch := h.channels[ev.ThreadID]
	h.mu.RUnlock()
	if ch == nil {
		return 0
	}

	ch.mu.RLock()
	targets := make([]*Session, 0, len(ch.subs))
	for s := range ch.subs {
		targets = append(targets, s)
	}
	ch.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.enqueue(Envelope{Event: &ev}) {
			delivered++
			continue
		}
		if s.State() == StateDisconnected {
			continue
		}
		h.logger.Warn("dropping slow session",
			zap.String("session_id", s.ID.String()),
			zap.String("thread_id", ev.ThreadID.String()),
		)
		observ.RealtimeSlowDropped.Inc()
		h.Disconnect(s)
	}
	observ.RealtimeDelivered.Add(float64(delivered))
	return delivered
}

// Subscribers returns the number of sessions watching threadID.
func (h *Hub) Subscribers(threadID uuid.UUID) int {
	h.mu.RLock()
	ch := h.channels[threadID]
	h.mu.RUnlock()
	if ch == nil {
		return 0
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.subs)
}

// add must be called with s.mu held.
func (h *Hub) add(s *Session, threadID uuid.UUID) {
	for {
		ch := h.channelFor(threadID)
		ch.mu.Lock()
		if ch.dead {
			ch.mu.Unlock()
			continue
		}
		ch.subs[s] = struct{}{}
		ch.mu.Unlock()
		return
	}
}

// remove must be called with s.mu held.
func (h *Hub) remove(s *Session, threadID uuid.UUID) {
	h.mu.RLock()
	ch := h.channels[threadID]
	h.mu.RUnlock()
	if ch == nil {
		return
	}

	ch.mu.Lock()
	delete(ch.subs, s)
	empty := len(ch.subs) == 0
	if empty {
		ch.dead = true
	}
	ch.mu.Unlock()

	if empty {
		h.mu.Lock()
		if h.channels[threadID] == ch {
			delete(h.channels, threadID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) channelFor(threadID uuid.UUID) *channel {
	h.mu.RLock()
	ch := h.channels[threadID]
	h.mu.RUnlock()
	if ch != nil && !ch.isDead() {
		return ch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ch = h.channels[threadID]; ch != nil && !ch.isDead() {
		return ch
	}
	ch = &channel{subs: make(map[*Session]struct{})}
	h.channels[threadID] = ch
	return ch
}

func (c *channel) isDead() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dead
}
