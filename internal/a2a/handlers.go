package a2a

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/appctx"
	"github.com/kandev/agentrun/internal/common/constants"
	"github.com/kandev/agentrun/internal/executor"
	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/models"
	"github.com/kandev/agentrun/internal/registry"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

// agentHandle bundles the scope an agent's turn runs under with its task
// handler closure, so the two don't have to be threaded separately through
// every handler below.
type agentHandle struct {
	scope   *auth.ExecutionScope
	handler registry.TaskHandler
}

func (s *Server) resolveRegisteredAgent(ctx context.Context, scope *auth.ExecutionScope, contextID string) (*agentHandle, *jsonrpc.Error) {
	agentID, err := s.resolveAgentID(ctx, scope.TenantID, scope.ProjectID, scope.GraphID, contextID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, "agent resolution failed", "graph not found")
		}
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, "agent resolution failed", err.Error())
	}

	agentScope := *scope
	agentScope.AgentID = agentID
	reg, err := s.registry.GetRegisteredAgent(ctx, &agentScope)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, "agent not found", agentID)
		}
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, "agent resolution failed", err.Error())
	}
	return &agentHandle{scope: &agentScope, handler: reg.TaskHandler}, nil
}

func fromAgentMetadata(msg apiv1.Message) (fromAgentID, fromExternalAgentID string) {
	return metadataValue(msg, "fromAgentId"), metadataValue(msg, "fromExternalAgentId")
}

func (s *Server) handleMessageSend(c *gin.Context, scope *auth.ExecutionScope, req *jsonrpc.Request) {
	var params apiv1.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInvalidRequest, "invalid params", err.Error())
		return
	}

	ctx := c.Request.Context()
	contextID := resolveContextID(params.Message)

	handle, rerr := s.resolveRegisteredAgent(ctx, scope, contextID)
	if rerr != nil {
		c.JSON(200, jsonrpc.Failure(req.ID, rerr))
		return
	}

	// Per spec.md §4.6, blocking defaults to true for direct chat (unlike
	// the base Google A2A spec's false default).
	blocking := params.Configuration == nil || params.Configuration.Blocking
	fromAgentID, fromExternalAgentID := fromAgentMetadata(params.Message)

	task := &apiv1.Task{
		ID:                  uuid.NewString(),
		ContextID:           contextID,
		Message:             &params.Message,
		SessionID:           newSessionID(),
		FromAgentID:         fromAgentID,
		FromExternalAgentID: fromExternalAgentID,
	}

	if !blocking {
		stopCh := make(chan struct{})
		bgCtx, cancel := appctx.Detached(ctx, stopCh, constants.TurnTimeout)
		go func() {
			defer cancel()
			if _, err := handle.handler(bgCtx, task); err != nil {
				s.log.Error("a2a: async message/send turn failed", zap.String("task_id", task.ID), zap.Error(err))
			}
		}()
		s.writeResult(c, req.ID, &apiv1.Task{ID: task.ID, ContextID: contextID, State: apiv1.TaskStateWorking})
		return
	}

	out, err := handle.handler(ctx, task)
	if err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInternalError, "turn failed", err.Error())
		return
	}

	// Transfer results always carry their data/text artifact on a full
	// Task snapshot, per spec.md §4.6, even for a blocking call.
	if len(out.Artifacts) > 0 {
		s.writeResult(c, req.ID, out)
		return
	}
	if out.Message != nil {
		s.writeResult(c, req.ID, out.Message)
		return
	}
	s.writeResult(c, req.ID, out)
}

func (s *Server) handleMessageStream(c *gin.Context, scope *auth.ExecutionScope, req *jsonrpc.Request) {
	var params apiv1.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInvalidRequest, "invalid params", err.Error())
		return
	}

	ctx := c.Request.Context()
	contextID := resolveContextID(params.Message)

	handle, rerr := s.resolveRegisteredAgent(ctx, scope, contextID)
	if rerr != nil {
		c.JSON(200, jsonrpc.Failure(req.ID, rerr))
		return
	}

	fromAgentID, fromExternalAgentID := fromAgentMetadata(params.Message)
	taskID := uuid.NewString()
	task := &apiv1.Task{
		ID:                  taskID,
		ContextID:           contextID,
		Message:             &params.Message,
		SessionID:           newSessionID(),
		FromAgentID:         fromAgentID,
		FromExternalAgentID: fromExternalAgentID,
	}

	frames := make(chan *jsonrpc.Response, 16)
	stopCh := make(chan struct{})
	turnCtx, cancel := appctx.Detached(ctx, stopCh, constants.TurnTimeout)
	turnCtx = executor.WithSink(turnCtx, frames)

	go func() {
		defer close(frames)
		defer cancel()
		if _, err := handle.handler(turnCtx, task); err != nil {
			s.log.Debug("a2a: streamed turn ended with error", zap.String("task_id", taskID), zap.Error(err))
		}
	}()

	onCancel := func() {
		s.exec.Cancels().Cancel(taskID)
		close(stopCh)
	}
	s.stream.Pipe(ctx, c, frames, onCancel)
}

func (s *Server) handleTasksGet(c *gin.Context, scope *auth.ExecutionScope, req *jsonrpc.Request) {
	var params apiv1.TasksGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInvalidRequest, "invalid params", err.Error())
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.GetTask(ctx, scope.TenantID, scope.ProjectID, params.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeError(c, req.ID, jsonrpc.CodeInternalError, "task not found", params.ID)
			return
		}
		s.writeError(c, req.ID, jsonrpc.CodeInternalError, "lookup failed", err.Error())
		return
	}

	artifacts, err := s.store.ListArtifactsByTaskIDs(ctx, scope.TenantID, scope.ProjectID, []string{task.ID})
	if err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInternalError, "lookup failed", err.Error())
		return
	}

	s.writeResult(c, req.ID, toAPITask(task, artifacts))
}

func (s *Server) handleTasksCancel(c *gin.Context, scope *auth.ExecutionScope, req *jsonrpc.Request) {
	var params apiv1.TasksCancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInvalidRequest, "invalid params", err.Error())
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.GetTask(ctx, scope.TenantID, scope.ProjectID, params.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeError(c, req.ID, jsonrpc.CodeInternalError, "task not found", params.ID)
			return
		}
		s.writeError(c, req.ID, jsonrpc.CodeInternalError, "lookup failed", err.Error())
		return
	}

	if task.Status == models.TaskStatusWorking {
		if !s.exec.Cancels().Cancel(task.ID) {
			// No running turn holds this task's cancel func (process
			// restart, or the turn already finished between our read and
			// here) — mark it canceled directly so a client polling
			// tasks/get still observes a terminal state.
			_ = s.store.UpdateTaskStatus(ctx, scope.TenantID, scope.ProjectID, task.ID, models.TaskStatusCanceled, models.TaskMetadata{FailureReason: "canceled by client"})
		}
	}

	s.writeResult(c, req.ID, apiv1.TasksCancelResult{Success: true})
}

func (s *Server) handleTasksResubscribe(c *gin.Context, scope *auth.ExecutionScope, req *jsonrpc.Request) {
	var params apiv1.TasksResubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(c, req.ID, jsonrpc.CodeInvalidRequest, "invalid params", err.Error())
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.GetTask(ctx, scope.TenantID, scope.ProjectID, params.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeError(c, req.ID, jsonrpc.CodeInternalError, "task not found", params.ID)
			return
		}
		s.writeError(c, req.ID, jsonrpc.CodeInternalError, "lookup failed", err.Error())
		return
	}
	artifacts, err := s.store.ListArtifactsByTaskIDs(ctx, scope.TenantID, scope.ProjectID, []string{task.ID})
	if err != nil {
		artifacts = nil
	}

	// No buffered per-task event log exists — in-memory sinks belong to
	// the originating request only. Resubscribe is best-effort per
	// spec.md §4.6: emit the current snapshot as a single frame and close.
	frames := make(chan *jsonrpc.Response, 1)
	frames <- jsonrpc.Success(req.ID, toAPITask(task, artifacts))
	close(frames)
	s.stream.Pipe(ctx, c, frames, nil)
}
