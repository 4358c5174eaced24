// Package streaming bridges the task executor's frame channel to an SSE
// HTTP response for message/stream and tasks/resubscribe, the way the
// teacher's Docker build handler bridges a Docker log reader to the HTTP
// response writer: flush after every frame, stop on the first write error
// (client gone).
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/common/logger"
)

// keepAliveInterval is how often a comment frame is written to keep
// intermediate proxies from timing out an idle SSE connection.
const keepAliveInterval = 15 * time.Second

// Writer streams jsonrpc.Response frames from a channel to an HTTP response
// as Server-Sent Events, one `data: <json>\n\n` per frame.
type Writer struct {
	log *logger.Logger
}

// New builds a Writer.
func New(log *logger.Logger) *Writer {
	return &Writer{log: log.WithFields(zap.String("component", "streaming"))}
}

// Pipe writes frames to c's response until frames closes, ctx is canceled,
// or the client disconnects. onCancel, when non-nil, is invoked once if the
// client disconnects before frames closes — the A2A layer wires this to
// executor.CancelRegistry.Cancel so a dropped connection stops the turn.
func (w *Writer) Pipe(ctx context.Context, c *gin.Context, frames <-chan *jsonrpc.Response, onCancel func()) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		w.log.Error("streaming: response writer does not support flushing")
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.Request.Context().Done():
			if onCancel != nil {
				onCancel()
			}
			return

		case frame, open := <-frames:
			if !open {
				return
			}
			if !w.writeFrame(c, frame) {
				if onCancel != nil {
					onCancel()
				}
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				if onCancel != nil {
					onCancel()
				}
				return
			}
			flusher.Flush()
		}
	}
}

func (w *Writer) writeFrame(c *gin.Context, frame *jsonrpc.Response) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		w.log.Error("streaming: marshal frame failed", zap.Error(err))
		return true
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		w.log.Debug("streaming: client disconnected", zap.Error(err))
		return false
	}
	return true
}
