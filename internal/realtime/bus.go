package realtime

import (
	"context"
	"errors"
	"sync"
)

// Bus carries events from the write path to every instance's Hub.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// StartForwarder delivers every published event to onEvent until ctx
	// is done.
	StartForwarder(ctx context.Context, onEvent func(Event)) error
	Close() error
}

// LocalBus delivers events in-process. Used when a single instance serves
// all sessions.
type LocalBus struct {
	mu      sync.RWMutex
	onEvent func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	onEvent := b.onEvent
	b.mu.RUnlock()
	if onEvent != nil {
		onEvent(ev)
	}
	return nil
}

func (b *LocalBus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}
	b.mu.Lock()
	b.onEvent = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.onEvent = nil
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error { return nil }
