package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests disabled by -short")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint
}

// Two buses on one channel stand in for two server instances.
func TestRedisBusCrossInstance(t *testing.T) {
	url := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer, err := NewRedisBus(ctx, url, "test:events", zap.NewNop())
	require.NoError(t, err)
	defer writer.Close()
	reader, err := NewRedisBus(ctx, url, "test:events", zap.NewNop())
	require.NoError(t, err)
	defer reader.Close()
	require.NoError(t, reader.Health(ctx))

	hub := newTestHub(8)
	require.NoError(t, reader.StartForwarder(ctx, func(ev Event) { hub.Publish(ev) }))

	thread := uuid.New()
	s := hub.Connect(uuid.New(), "remote")
	require.NoError(t, hub.Join(s, thread))

	parent := int64(3)
	require.NoError(t, writer.Publish(ctx, MessageCreated(&models.Message{
		ID: 4, ThreadID: thread, ParentID: &parent, AuthorHandle: "SwiftBison1234", Content: "from afar",
	})))

	var got []Envelope
	require.Eventually(t, func() bool {
		got = append(got, pending(s)...)
		return len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)

	ev := got[0].Event
	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, thread, ev.ThreadID)
	assert.Equal(t, "from afar", ev.Message.Content)
	require.NotNil(t, ev.Message.ParentID)
	assert.Equal(t, parent, *ev.Message.ParentID)
}

func TestNewRedisBusBadURL(t *testing.T) {
	_, err := NewRedisBus(context.Background(), "not a url", "x", zap.NewNop())
	assert.Error(t, err)
}
