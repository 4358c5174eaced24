package executor

import (
	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

// emitStatus pushes a TaskStatusUpdateEvent frame to in's sink, if any. The
// executor is agnostic to whether anyone is actually listening — message/send
// (non-streaming) callers pass a nil sink and these calls are no-ops.
func (e *Executor) emitStatus(sink chan<- *jsonrpc.Response, taskID, contextID string, state apiv1.TaskState, final bool) {
	if sink == nil {
		return
	}
	evt := apiv1.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, State: state, Final: final}
	send(sink, evt)
}

// emitMessage pushes the agent's final reply Message as its own SSE frame,
// ahead of the final TaskStatusUpdateEvent (state completed, final true)
// that emitStatus sends. The stream carries no Task object frame, neither
// at its start nor at its end.
func (e *Executor) emitMessage(sink chan<- *jsonrpc.Response, msg *apiv1.Message) {
	if sink == nil || msg == nil {
		return
	}
	send(sink, msg)
}

func (e *Executor) emitArtifact(sink chan<- *jsonrpc.Response, taskID, contextID string, artifact apiv1.Artifact) {
	if sink == nil {
		return
	}
	evt := apiv1.TaskArtifactUpdateEvent{TaskID: taskID, ContextID: contextID, Artifact: artifact}
	send(sink, evt)
}

func (e *Executor) emitError(sink chan<- *jsonrpc.Response, err error) {
	if sink == nil {
		return
	}
	resp := jsonrpc.Failure(nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil))
	select {
	case sink <- resp:
	default:
	}
}

func send(sink chan<- *jsonrpc.Response, result interface{}) {
	resp := jsonrpc.Success(nil, result)
	select {
	case sink <- resp:
	default:
	}
}
