package executor

import (
	"context"
	"fmt"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/ledger/models"
	"github.com/kandev/agentrun/internal/registry"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

type sinkKey struct{}

// WithSink attaches a frame sink to ctx. The A2A dispatcher's message/stream
// handler calls this before invoking a
// registry.TaskHandler so status/artifact frames reach the SSE writer —
// registry.TaskHandler's signature carries only a context and a task, so the
// sink rides along as a context value rather than widening that interface.
func WithSink(ctx context.Context, sink chan<- *jsonrpc.Response) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

func sinkFromContext(ctx context.Context) chan<- *jsonrpc.Response {
	sink, _ := ctx.Value(sinkKey{}).(chan<- *jsonrpc.Response)
	return sink
}

// HandlerFor adapts Executor.Run into the closure shape internal/registry
// expects, so cmd/agentrun can wire `registry.New(store, baseURL, version,
// exec.HandlerFor)` without registry ever importing this package.
func (e *Executor) HandlerFor(scope *auth.ExecutionScope, agent *models.Agent) registry.TaskHandler {
	return func(ctx context.Context, task *apiv1.Task) (*apiv1.Task, error) {
		if task.Message == nil {
			return nil, fmt.Errorf("executor: task has no inbound message")
		}
		out, err := e.Run(ctx, &Input{
			Scope:               scope,
			Agent:               agent,
			ContextID:           task.ContextID,
			Message:             *task.Message,
			FromAgentID:         task.FromAgentID,
			FromExternalAgentID: task.FromExternalAgentID,
			SessionID:           task.SessionID,
			TaskID:              task.ID,
			Sink:                sinkFromContext(ctx),
		})
		if err != nil {
			return nil, err
		}
		return out.Task, nil
	}
}
