package streaming

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/common/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPipeWritesFramesAsSSE(t *testing.T) {
	w := New(logger.Default())

	req := httptest.NewRequest("GET", "/agents/g1/a2a", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	frames := make(chan *jsonrpc.Response, 2)
	frames <- jsonrpc.Success(nil, map[string]string{"state": "working"})
	frames <- jsonrpc.Success(nil, map[string]string{"state": "completed"})
	close(frames)

	w.Pipe(context.Background(), c, frames, nil)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"state":"working"`))
	assert.True(t, strings.Contains(body, `"state":"completed"`))
	assert.Equal(t, 2, strings.Count(body, "data: "))
}

func TestPipeInvokesOnCancelWhenClientContextDone(t *testing.T) {
	w := New(logger.Default())

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/agents/g1/a2a", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	frames := make(chan *jsonrpc.Response)
	canceled := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		w.Pipe(context.Background(), c, frames, func() { close(canceled) })
		close(done)
	}()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("onCancel was not invoked after client disconnect")
	}
	<-done
}

func TestPipeReturnsWhenFramesChannelClosesImmediately(t *testing.T) {
	w := New(logger.Default())

	req := httptest.NewRequest("GET", "/agents/g1/a2a", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	frames := make(chan *jsonrpc.Response)
	close(frames)

	done := make(chan struct{})
	go func() {
		w.Pipe(context.Background(), c, frames, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pipe did not return after frames channel closed")
	}
	require.Equal(t, 200, rec.Code)
}
