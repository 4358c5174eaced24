package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/events/bus"
)

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "debug", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

func TestRegisterAuditLogSubscribesToTaskWildcardSubject(t *testing.T) {
	eventBus := bus.NewMemoryEventBus(testLogger(t))
	defer eventBus.Close()

	audit := RegisterAuditLog(eventBus, testLogger(t))
	defer audit.Close()

	require.NotNil(t, audit.sub)
	assert.True(t, audit.sub.IsValid())
}

func TestRegisterAuditLogConsumesPublishedTaskEvents(t *testing.T) {
	eventBus := bus.NewMemoryEventBus(testLogger(t))
	defer eventBus.Close()

	// The audit subscriber only logs, so an independent subscriber on the
	// same wildcard subject stands in for it: receiving the event shows the
	// bus delivers a task subject to wildcard subscribers while the audit
	// subscription is registered alongside.
	received := make(chan *bus.Event, 1)
	_, err := eventBus.Subscribe(BuildTaskWildcardSubject(), func(_ context.Context, ev *bus.Event) error {
		received <- ev
		return nil
	})
	require.NoError(t, err)

	audit := RegisterAuditLog(eventBus, testLogger(t))
	defer audit.Close()

	ev := bus.NewEvent(TaskCreated, "executor", map[string]interface{}{"taskId": "t1", "contextId": "c1"})
	require.NoError(t, eventBus.Publish(context.Background(), BuildTaskSubject("t1"), ev))

	select {
	case got := <-received:
		assert.Equal(t, TaskCreated, got.Type)
	case <-time.After(time.Second):
		t.Fatal("test subscriber did not observe the published event")
	}
}

func TestRegisterAuditLogWithNilBusIsNoOp(t *testing.T) {
	audit := RegisterAuditLog(nil, testLogger(t))
	require.NotNil(t, audit)
	audit.Close()
}
