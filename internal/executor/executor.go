// Package executor implements the task executor (C8): one agent turn, end
// to end — prompt assembly, model invocation, tool-call dispatch, and
// transfer/delegate detection — per spec.md §4.7.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/a2a/jsonrpc"
	"github.com/kandev/agentrun/internal/auth"
	"github.com/kandev/agentrun/internal/common/constants"
	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/conversation"
	"github.com/kandev/agentrun/internal/events"
	"github.com/kandev/agentrun/internal/events/bus"
	"github.com/kandev/agentrun/internal/executor/convlock"
	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/models"
	"github.com/kandev/agentrun/internal/llm"
	"github.com/kandev/agentrun/internal/tools"
	"github.com/kandev/agentrun/internal/toolsession"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

// ErrStopLimit is returned when a delegate chain exceeds the graph's
// stopWhen turn budget.
var ErrStopLimit = errors.New("executor: graph stopWhen turn limit exceeded")

const (
	maxToolIterations  = 8
	defaultMaxDelegate = 5
	transferToolPrefix = "transfer_to_"
	delegateToolPrefix = "delegate_to_"
)

// ModelClient is the model-invocation surface the executor drives each
// turn. Satisfied by *llm.Client.
type ModelClient interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Executor runs agent turns against a shared set of collaborators.
type Executor struct {
	store      ledger.Store
	conv       *conversation.Service
	sessions   *toolsession.Manager
	binder     *tools.Binder
	model      ModelClient
	httpClient *http.Client
	cancels    *CancelRegistry
	eventBus   bus.EventBus
	convLocks  *convlock.Map
	log        *logger.Logger
}

// New builds an Executor.
func New(store ledger.Store, conv *conversation.Service, sessions *toolsession.Manager, binder *tools.Binder, model ModelClient, eventBus bus.EventBus, log *logger.Logger) *Executor {
	return &Executor{
		store:      store,
		conv:       conv,
		sessions:   sessions,
		binder:     binder,
		model:      model,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cancels:    NewCancelRegistry(),
		eventBus:   eventBus,
		convLocks:  convlock.New(),
		log:        log.WithFields(zap.String("component", "executor")),
	}
}

// Cancels exposes the cancellation registry for tasks/cancel handling.
func (e *Executor) Cancels() *CancelRegistry { return e.cancels }

// Input is one turn's invocation parameters.
type Input struct {
	Scope               *auth.ExecutionScope
	Agent               *models.Agent
	ContextID           string
	Message             apiv1.Message
	FromAgentID         string
	FromExternalAgentID string
	SessionID           string
	// TaskID, when non-empty, is used as the task row's id instead of
	// minting a fresh one. The A2A layer pre-generates an id for
	// non-blocking message/send calls so it can hand the caller a task
	// snapshot before the turn finishes.
	TaskID string
	Sink   chan<- *jsonrpc.Response
}

// Output is one turn's result.
type Output struct {
	Task          *apiv1.Task
	FinalMessage  *apiv1.Message
	SessionID     string
}

// Run executes one top-level agent turn.
func (e *Executor) Run(ctx context.Context, in *Input) (*Output, error) {
	return e.run(ctx, in, 0)
}

func (e *Executor) run(ctx context.Context, in *Input, depth int) (*Output, error) {
	scope := in.Scope
	agent := in.Agent
	taskID := in.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	turnCtx, cancel := context.WithTimeout(ctx, constants.TurnTimeout)
	release := e.cancels.register(taskID, cancel)
	defer release()
	defer cancel()

	// Per spec.md §5, task creation, activeAgentId updates, and message
	// appends for a contextId are serialized. A delegate's child turn
	// (depth > 0) shares its parent's contextId but runs synchronously
	// inside the parent's own critical section, so it must not re-lock.
	if depth == 0 {
		unlockConv := e.convLocks.Lock(in.ContextID)
		defer unlockConv()
	}

	task := &models.Task{
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		GraphID:   scope.GraphID,
		ID:        taskID,
		ContextID: in.ContextID,
		AgentID:   agent.ID,
		Status:    models.TaskStatusWorking,
	}
	if err := e.store.CreateTask(turnCtx, task); err != nil {
		return nil, fmt.Errorf("executor: create task: %w", err)
	}
	e.publish(events.TaskCreated, taskID, in.ContextID)
	e.emitStatus(in.Sink, taskID, in.ContextID, apiv1.TaskStateWorking, false)

	graph, err := e.store.GetGraph(turnCtx, scope.TenantID, scope.ProjectID, scope.GraphID)
	if err != nil {
		return nil, e.fail(turnCtx, task, in, fmt.Errorf("load graph: %w", err))
	}

	isNewConversation, err := e.ensureConversation(turnCtx, scope, in.ContextID, agent.ID)
	if err != nil {
		return nil, e.fail(turnCtx, task, in, fmt.Errorf("ensure conversation: %w", err))
	}

	inboundText := textFromMessage(in.Message)
	if err := e.appendInbound(turnCtx, scope, in, taskID, inboundText); err != nil {
		return nil, e.fail(turnCtx, task, in, fmt.Errorf("append inbound message: %w", err))
	}

	sessionID := e.sessions.EnsureGraphSession(in.SessionID, scope.TenantID, scope.ProjectID, in.ContextID, taskID)

	histCfg := models.DefaultConversationHistoryConfig()
	if agent.ConversationHistoryConfig != nil {
		histCfg = *agent.ConversationHistoryConfig
	}

	formatted, err := e.conv.FormattedHistory(turnCtx, scope.TenantID, scope.ProjectID, in.ContextID, histCfg, nil, inboundText)
	if err != nil {
		return nil, e.fail(turnCtx, task, in, fmt.Errorf("build history: %w", err))
	}
	scopedArtifacts := e.conv.ScopedArtifacts(turnCtx, scope.TenantID, scope.ProjectID, in.ContextID, histCfg, nil)

	triggers := map[models.ContextVariableTrigger]bool{models.TriggerInvocation: true}
	if isNewConversation {
		triggers[models.TriggerInitialization] = true
	}
	ctxCfg, err := e.store.GetContextConfig(turnCtx, scope.TenantID, scope.ProjectID, scope.GraphID, scope.GraphID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		e.log.Warn("executor: context config lookup failed", zap.Error(err))
	}
	ctxVars := resolveContextVariables(turnCtx, e.httpClient, e.log, ctxCfg, triggers)

	relations, err := e.store.ListAgentRelations(turnCtx, scope.TenantID, scope.ProjectID, scope.GraphID)
	if err != nil {
		return nil, e.fail(turnCtx, task, in, fmt.Errorf("load agent relations: %w", err))
	}

	toolModels := e.loadTools(turnCtx, scope, agent.ToolIDs)
	toolDefs, err := e.binder.Definitions(turnCtx, toolModels)
	if err != nil {
		e.log.Warn("executor: tool definition build failed", zap.Error(err))
	}
	handoffDefs := relationToolDefs(relations)
	allDefs := append(append([]llm.ToolDefinition{}, toolDefs...), handoffDefs...)

	systemPrompt := buildSystemPrompt(agent, formatted, scopedArtifacts, ctxVars)

	messages := []llm.Message{{
		Role:    llm.RoleUser,
		Content: []llm.ContentBlock{{Type: "text", Text: inboundText}},
	}}

	var finalText string
	var transferTarget string
	sawTransfer := false

	for i := 0; i < maxToolIterations; i++ {
		if err := turnCtx.Err(); err != nil {
			return nil, e.abort(turnCtx, task, in, err)
		}

		resp, err := e.model.Complete(turnCtx, &llm.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    allDefs,
		})
		if err != nil {
			return nil, e.fail(turnCtx, task, in, fmt.Errorf("model invocation: %w", err))
		}

		text, toolUses := splitResponse(resp)
		if text != "" {
			finalText = text
		}
		if len(toolUses) == 0 {
			break
		}

		messages = append(messages, assistantMessageFromResponse(resp))

		var toolResults []llm.ContentBlock
		transferHandled := false
		for _, tu := range toolUses {
			if target, ok := handoffTarget(tu.ToolName, transferToolPrefix); ok {
				transferTarget = target
				sawTransfer = true
				transferHandled = true
				break
			}

			if target, ok := handoffTarget(tu.ToolName, delegateToolPrefix); ok {
				resultText, derr := e.runDelegate(turnCtx, in, scope, graph, target, tu.ToolInput, sessionID, depth)
				if derr != nil {
					resultText = fmt.Sprintf("delegation failed: %s", derr.Error())
				}
				e.recordToolResult(sessionID, tu, resultText, derr != nil)
				toolResults = append(toolResults, llm.ContentBlock{
					Type: "tool_result", ToolUseID: tu.ToolUseID,
					ToolResultContent: resultText, IsError: derr != nil,
				})
				continue
			}

			result, ierr := e.binder.Invoke(turnCtx, toolModels, tu.ToolName, tu.ToolInput)
			resultText := stringifyToolResult(result, ierr)
			e.recordToolResult(sessionID, tu, resultText, ierr != nil)
			toolResults = append(toolResults, llm.ContentBlock{
				Type: "tool_result", ToolUseID: tu.ToolUseID,
				ToolResultContent: resultText, IsError: ierr != nil,
			})
		}

		if transferHandled {
			break
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: toolResults})
	}

	if sawTransfer {
		return e.finishTransfer(turnCtx, scope, in, task, transferTarget)
	}
	return e.finishChatReply(turnCtx, scope, in, task, finalText, sessionID)
}

func (e *Executor) ensureConversation(ctx context.Context, scope *auth.ExecutionScope, contextID, defaultAgentID string) (bool, error) {
	_, err := e.store.GetConversation(ctx, scope.TenantID, scope.ProjectID, contextID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return false, err
	}
	conv := &models.Conversation{
		TenantID:      scope.TenantID,
		ProjectID:     scope.ProjectID,
		ID:            contextID,
		ActiveAgentID: defaultAgentID,
	}
	if err := e.store.CreateConversation(ctx, conv); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Executor) appendInbound(ctx context.Context, scope *auth.ExecutionScope, in *Input, taskID, text string) error {
	msgType := models.MessageTypeChat
	visibility := models.VisibilityUserFacing
	role := models.RoleUser
	if in.FromAgentID != "" || in.FromExternalAgentID != "" {
		msgType = models.MessageTypeA2ARequest
		role = models.RoleAgent
		visibility = models.VisibilityInternal
		if in.FromExternalAgentID != "" {
			visibility = models.VisibilityExternal
		}
	}
	msg := &models.Message{
		TenantID:            scope.TenantID,
		ProjectID:           scope.ProjectID,
		ConversationID:      in.ContextID,
		ID:                  uuid.NewString(),
		Role:                role,
		Text:                text,
		MessageType:         msgType,
		Visibility:          visibility,
		FromAgentID:         in.FromAgentID,
		FromExternalAgentID: in.FromExternalAgentID,
		ToAgentID:           in.Agent.ID,
		TaskID:              taskID,
		CreatedAt:           time.Now().UTC(),
	}
	return e.conv.AppendMessage(ctx, msg)
}

func (e *Executor) loadTools(ctx context.Context, scope *auth.ExecutionScope, toolIDs []string) []*models.Tool {
	out := make([]*models.Tool, 0, len(toolIDs))
	for _, id := range toolIDs {
		t, err := e.store.GetTool(ctx, scope.TenantID, scope.ProjectID, id)
		if err != nil {
			e.log.Warn("executor: tool lookup failed, skipping", zap.String("tool_id", id), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	return out
}

func (e *Executor) recordToolResult(sessionID string, tu llm.ContentBlock, resultText string, isErr bool) {
	var args map[string]any
	if len(tu.ToolInput) > 0 {
		_ = json.Unmarshal(tu.ToolInput, &args)
	}
	var result any = resultText
	e.sessions.RecordToolResult(sessionID, toolsession.ToolResult{
		ToolCallID: tu.ToolUseID,
		ToolName:   tu.ToolName,
		Args:       args,
		Result:     result,
		Timestamp:  time.Now().UTC(),
	})
	_ = isErr
}

// runDelegate spawns a child turn against the target agent within the same
// conversation and tool session, returning the child's final reply text to
// feed back as the parent's tool_result content.
func (e *Executor) runDelegate(ctx context.Context, parentIn *Input, scope *auth.ExecutionScope, graph *models.Graph, targetAgentID string, args json.RawMessage, sessionID string, depth int) (string, error) {
	maxDepth := graph.StopWhenMaxTurns
	if maxDepth <= 0 {
		maxDepth = defaultMaxDelegate
	}
	if depth+1 >= maxDepth {
		return "", ErrStopLimit
	}

	childAgent, err := e.store.GetAgent(ctx, scope.TenantID, scope.ProjectID, scope.GraphID, targetAgentID)
	if err != nil {
		return "", fmt.Errorf("load delegate target %q: %w", targetAgentID, err)
	}

	var decoded struct {
		Task string `json:"task"`
	}
	if len(args) > 0 {
		_ = json.Unmarshal(args, &decoded)
	}
	if decoded.Task == "" {
		decoded.Task = string(args)
	}

	childScope := &auth.ExecutionScope{TenantID: scope.TenantID, ProjectID: scope.ProjectID, GraphID: scope.GraphID, AgentID: targetAgentID}
	childIn := &Input{
		Scope:       childScope,
		Agent:       childAgent,
		ContextID:   parentIn.ContextID,
		Message:     apiv1.Message{Role: "agent", Parts: []apiv1.Part{apiv1.TextPart(decoded.Task)}},
		FromAgentID: parentIn.Agent.ID,
		SessionID:   sessionID,
	}

	out, err := e.run(ctx, childIn, depth+1)
	if err != nil {
		return "", err
	}
	e.publish(events.AgentDelegated, out.Task.ID, parentIn.ContextID)

	if out.FinalMessage == nil {
		return "", fmt.Errorf("delegate target produced no reply")
	}
	return textFromMessage(*out.FinalMessage), nil
}

func (e *Executor) finishTransfer(ctx context.Context, scope *auth.ExecutionScope, in *Input, task *models.Task, targetAgentID string) (*Output, error) {
	artifactID := uuid.NewString()
	data := apiv1.TransferData{Type: "transfer", TargetAgentID: targetAgentID}
	dataPart, err := apiv1.DataPart(data)
	if err != nil {
		return nil, e.fail(ctx, task, in, err)
	}
	parts := []apiv1.Part{dataPart, apiv1.TextPart(fmt.Sprintf("Transferring this conversation to %s.", targetAgentID))}
	partsJSON, err := json.Marshal(parts)
	if err != nil {
		return nil, e.fail(ctx, task, in, err)
	}

	artifact := &models.Artifact{
		TenantID:   scope.TenantID,
		ProjectID:  scope.ProjectID,
		TaskID:     task.ID,
		ArtifactID: artifactID,
		Name:       "transfer",
		Parts:      partsJSON,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateArtifact(ctx, artifact); err != nil {
		return nil, e.fail(ctx, task, in, err)
	}

	meta := models.TaskMetadata{}
	if err := e.store.TransferAndCompleteTask(ctx, scope.TenantID, scope.ProjectID, in.ContextID, task.ID, targetAgentID, meta); err != nil {
		return nil, e.fail(ctx, task, in, err)
	}
	e.publish(events.AgentTransferred, task.ID, in.ContextID)

	transferMsg := &apiv1.Message{
		Role:      "agent",
		Parts:     parts,
		ContextID: in.ContextID,
		TaskID:    task.ID,
	}
	e.emitArtifact(in.Sink, task.ID, in.ContextID, apiv1.Artifact{ArtifactID: artifactID, Name: "transfer", Parts: parts})
	e.emitMessage(in.Sink, transferMsg)
	e.emitStatus(in.Sink, task.ID, in.ContextID, apiv1.TaskStateCompleted, true)

	return &Output{
		Task: &apiv1.Task{
			ID:        task.ID,
			ContextID: in.ContextID,
			State:     apiv1.TaskStateCompleted,
			Artifacts: []apiv1.Artifact{{ArtifactID: artifactID, Name: "transfer", Parts: parts}},
			Message:   transferMsg,
		},
		FinalMessage: transferMsg,
		SessionID:    in.SessionID,
	}, nil
}

func (e *Executor) finishChatReply(ctx context.Context, scope *auth.ExecutionScope, in *Input, task *models.Task, text string, sessionID string) (*Output, error) {
	visibility := models.VisibilityUserFacing
	msgType := models.MessageTypeChat
	if in.FromAgentID != "" || in.FromExternalAgentID != "" {
		msgType = models.MessageTypeA2AResponse
		visibility = models.VisibilityInternal
		if in.FromExternalAgentID != "" {
			visibility = models.VisibilityExternal
		}
	}

	reply := &models.Message{
		TenantID:       scope.TenantID,
		ProjectID:      scope.ProjectID,
		ConversationID: in.ContextID,
		ID:             uuid.NewString(),
		Role:           models.RoleAgent,
		Text:           text,
		MessageType:    msgType,
		Visibility:     visibility,
		FromAgentID:    in.Agent.ID,
		ToAgentID:      in.FromAgentID,
		TaskID:         task.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.conv.AppendMessage(ctx, reply); err != nil {
		return nil, e.fail(ctx, task, in, err)
	}

	if err := e.store.UpdateTaskStatus(ctx, scope.TenantID, scope.ProjectID, task.ID, models.TaskStatusCompleted, models.TaskMetadata{MessageIDs: []string{reply.ID}}); err != nil {
		return nil, e.fail(ctx, task, in, err)
	}
	e.publish(events.TaskCompleted, task.ID, in.ContextID)

	finalMsg := &apiv1.Message{
		Role:      "agent",
		Parts:     []apiv1.Part{apiv1.TextPart(text)},
		ContextID: in.ContextID,
		TaskID:    task.ID,
	}
	e.emitMessage(in.Sink, finalMsg)
	e.emitStatus(in.Sink, task.ID, in.ContextID, apiv1.TaskStateCompleted, true)

	return &Output{
		Task: &apiv1.Task{
			ID:        task.ID,
			ContextID: in.ContextID,
			State:     apiv1.TaskStateCompleted,
			Message:   finalMsg,
		},
		FinalMessage: finalMsg,
		SessionID:    sessionID,
	}, nil
}

func (e *Executor) fail(parentCtx context.Context, task *models.Task, in *Input, cause error) error {
	finalCtx, cancel := context.WithTimeout(context.Background(), constants.TaskDeleteTimeout)
	defer cancel()

	e.log.Error("executor: turn failed", zap.String("task_id", task.ID), zap.Error(cause))

	_ = e.conv.AppendMessage(finalCtx, &models.Message{
		TenantID:       in.Scope.TenantID,
		ProjectID:      in.Scope.ProjectID,
		ConversationID: in.ContextID,
		ID:             uuid.NewString(),
		Role:           models.RoleSystem,
		Text:           cause.Error(),
		MessageType:    models.MessageTypeSystem,
		Visibility:     models.VisibilityInternal,
		TaskID:         task.ID,
		CreatedAt:      time.Now().UTC(),
	})
	_ = e.store.UpdateTaskStatus(finalCtx, in.Scope.TenantID, in.Scope.ProjectID, task.ID, models.TaskStatusFailed, models.TaskMetadata{FailureReason: cause.Error()})
	e.publish(events.TaskFailed, task.ID, in.ContextID)
	e.emitError(in.Sink, cause)
	return cause
}

func (e *Executor) abort(parentCtx context.Context, task *models.Task, in *Input, cause error) error {
	finalCtx, cancel := context.WithTimeout(context.Background(), constants.TaskDeleteTimeout)
	defer cancel()

	status := models.TaskStatusCanceled
	reason := "canceled"
	if errors.Is(cause, context.DeadlineExceeded) {
		status = models.TaskStatusFailed
		reason = "timeout"
	}

	_ = e.store.UpdateTaskStatus(finalCtx, in.Scope.TenantID, in.Scope.ProjectID, task.ID, status, models.TaskMetadata{FailureReason: reason})
	if status == models.TaskStatusCanceled {
		e.publish(events.TaskCanceled, task.ID, in.ContextID)
		e.emitStatus(in.Sink, task.ID, in.ContextID, apiv1.TaskStateCanceled, true)
	} else {
		e.publish(events.TaskFailed, task.ID, in.ContextID)
		e.emitError(in.Sink, cause)
	}
	return cause
}

func (e *Executor) publish(eventType, taskID, contextID string) {
	if e.eventBus == nil {
		return
	}
	ev := bus.NewEvent(eventType, "executor", map[string]any{"taskId": taskID, "contextId": contextID})
	_ = e.eventBus.Publish(context.Background(), events.BuildTaskSubject(taskID), ev)
}

func textFromMessage(m apiv1.Message) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == apiv1.PartKindText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func splitResponse(resp *llm.Response) (text string, toolUses []llm.ContentBlock) {
	var b strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			b.WriteString(block.Text)
		case "tool_use":
			toolUses = append(toolUses, block)
		}
	}
	return b.String(), toolUses
}

func assistantMessageFromResponse(resp *llm.Response) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
}

func stringifyToolResult(result any, err error) string {
	if err != nil {
		return err.Error()
	}
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, merr := json.Marshal(v)
		if merr != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// relationToolDefs advertises each transfer/delegate target inside the graph
// as a synthetic pseudo-tool the model can call, named transfer_to_<agentId> /
// delegate_to_<agentId>. Relations to external agents get no pseudo-tool.
// These tool definitions are what tell the model the names exist; the
// registry's enhanced AgentCard description lists the same targets for peers.
func relationToolDefs(relations []*models.AgentRelation) []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, rel := range relations {
		if rel.ExternalAgentURL != "" {
			continue
		}
		switch rel.RelationType {
		case models.RelationTransfer:
			defs = append(defs, llm.ToolDefinition{
				Name:        transferToolPrefix + rel.TargetAgentID,
				Description: fmt.Sprintf("Transfer this conversation to agent %q.", rel.TargetAgentID),
				InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			})
		case models.RelationDelegate:
			defs = append(defs, llm.ToolDefinition{
				Name:        delegateToolPrefix + rel.TargetAgentID,
				Description: fmt.Sprintf("Delegate a sub-task to agent %q and receive its result.", rel.TargetAgentID),
				InputSchema: json.RawMessage(`{"type":"object","properties":{"task":{"type":"string"}},"required":["task"]}`),
			})
		}
	}
	return defs
}

func handoffTarget(toolName, prefix string) (string, bool) {
	if !strings.HasPrefix(toolName, prefix) {
		return "", false
	}
	return strings.TrimPrefix(toolName, prefix), true
}

func buildSystemPrompt(agent *models.Agent, history string, artifacts []*models.Artifact, ctxVars map[string]json.RawMessage) string {
	var b strings.Builder
	b.WriteString(agent.Prompt)
	if history != "" {
		b.WriteString("\n\nConversation history:\n")
		b.WriteString(history)
	}
	if len(artifacts) > 0 {
		b.WriteString("\n\nArtifacts available from prior tasks:\n")
		for _, a := range artifacts {
			fmt.Fprintf(&b, "- %s: %s\n", a.ArtifactID, a.Name)
		}
	}
	if len(ctxVars) > 0 {
		b.WriteString("\n\nContext variables:\n")
		for name, val := range ctxVars {
			fmt.Fprintf(&b, "- %s: %s\n", name, string(val))
		}
	}
	return b.String()
}
