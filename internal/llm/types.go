// Package llm wraps github.com/anthropics/anthropic-sdk-go behind a narrow
// Client boundary the task executor (C8) drives each turn: one user-facing
// prompt in, either a complete Response or a stream of Chunks out. Adapted
// from the teacher-absent anthropic model adapter found elsewhere in the
// retrieval pack (goa-ai's features/model/anthropic package) — the same
// request/response shape, generalized away from goa's planner-specific
// model.Request/Response types to this runtime's own conversation/tool
// vocabulary.
package llm

import "encoding/json"

// Role is a conversation turn's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is a tagged union mirroring the Anthropic Messages content
// block kinds this runtime actually produces/consumes.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "tool_use" | "tool_result"

	// Text variant.
	Text string `json:"text,omitempty"`

	// ToolUse variant (assistant requesting a tool call).
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// ToolResult variant (user turn feeding a tool's output back in).
	ToolResultContent string `json:"tool_result_content,omitempty"`
	IsError           bool   `json:"is_error,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is one turn's model invocation.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for a turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a completed, non-streaming model turn.
type Response struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// ChunkType discriminates a streamed Chunk's payload.
type ChunkType string

const (
	ChunkTypeText         ChunkType = "text"
	ChunkTypeToolCallDone ChunkType = "tool_call"
	ChunkTypeStop         ChunkType = "stop"
	ChunkTypeUsage        ChunkType = "usage"
)

// Chunk is one increment of a streamed Response.
type Chunk struct {
	Type ChunkType

	TextDelta string

	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage

	StopReason string
	Usage      Usage
}
