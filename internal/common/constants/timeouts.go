// Package constants provides application-wide constants and timeouts.
package constants

import "time"

// Timeouts for various operations.
const (
	// TurnTimeout is the maximum time a single task turn (model invocation
	// plus any tool calls it triggers) may run before the executor cancels it.
	TurnTimeout = 10 * time.Minute

	// ToolInvocationTimeout is the maximum time a single tool call (remote
	// MCP or sandboxed function) may run.
	ToolInvocationTimeout = 2 * time.Minute

	// TaskDeleteTimeout is the maximum time to wait for task teardown,
	// including cancellation propagation and sandbox session cleanup.
	TaskDeleteTimeout = 30 * time.Second
)
