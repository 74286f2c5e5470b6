//go:build integration

package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPublishSubscribe(t *testing.T) {
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	c, err := Connect(fmt.Sprintf("nats://%s:%s", host, port.Port()), "test.jobs")
	require.NoError(t, err)
	defer c.Close()

	got := make(chan models.Event, 1)
	sub, err := c.SubscribeEvents(func(_ context.Context, ev models.Event) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, c.Flush(ctx))

	require.NoError(t, c.Publish(ctx, models.Event{ExternalID: "vid1", To: models.StatusSuccess}))
	require.NoError(t, c.Flush(ctx))

	select {
	case ev := <-got:
		assert.Equal(t, "vid1", ev.ExternalID)
		assert.Equal(t, models.StatusSuccess, ev.To)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}
