// Package tools binds an agent's declared Tool rows to invocable callables:
// a remote MCP server connection (lazily established, cached per tool) or a
// sandboxed function invocation (C6). It is the thing the task executor
// (C8) drives each turn to populate the model's tool interface and to run
// whichever tool call the model requests.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/credentials"
	"github.com/kandev/agentrun/internal/ledger/models"
	"github.com/kandev/agentrun/internal/llm"
	"github.com/kandev/agentrun/internal/sandbox"
)

// Invoker is the narrow sandboxed-function execution surface consumed here
// (satisfied by *sandbox.Pool).
type Invoker interface {
	Execute(ctx context.Context, toolID string, args map[string]any, cfg models.ToolConfig) (any, error)
}

// Binder resolves a graph's tool bindings into model-ready definitions and
// dispatches tool calls by name. One Binder serves one task executor
// instance; its MCP client cache is keyed by tool id and reused across
// calls within the same process, mirroring the teacher's MCP manager's
// lazy-connect-then-cache shape.
type Binder struct {
	creds   *credentials.Resolver
	sandbox Invoker
	log     *logger.Logger

	mu      sync.Mutex
	clients map[string]*mcpConn // toolID -> established connection
}

type mcpConn struct {
	client    *mcpclient.Client
	toolNames map[string]bool
}

// New builds a Binder.
func New(creds *credentials.Resolver, sandboxPool Invoker, log *logger.Logger) *Binder {
	return &Binder{
		creds:   creds,
		sandbox: sandboxPool,
		log:     log.WithFields(zap.String("component", "tools")),
		clients: make(map[string]*mcpConn),
	}
}

// Definitions builds the llm.ToolDefinition list the model sees for a set
// of agent-bound tools. Remote MCP tools are expanded into one definition
// per tool the server advertises (connecting lazily on first use);
// function tools are exposed as a single definition matching the tool's own
// name and schema.
func (b *Binder) Definitions(ctx context.Context, toolList []*models.Tool) ([]llm.ToolDefinition, error) {
	var defs []llm.ToolDefinition
	for _, t := range toolList {
		if t.Status == models.ToolStatusDisabled {
			continue
		}
		switch t.Config.Kind {
		case models.ToolConfigRemoteMCP:
			remote, err := b.mcpDefinitions(ctx, t)
			if err != nil {
				b.log.Warn("tools: mcp discovery failed, skipping tool",
					zap.String("tool_id", t.ID), zap.Error(err))
				continue
			}
			defs = append(defs, remote...)
		case models.ToolConfigFunction:
			defs = append(defs, llm.ToolDefinition{
				Name:        t.Name,
				Description: t.Name,
				InputSchema: t.AvailableTools,
			})
		}
	}
	return defs, nil
}

// Invoke dispatches a single model tool call by name. toolList is the same
// agent-bound set passed to Definitions, used to locate which Tool row
// (and therefore which transport) owns the requested name.
func (b *Binder) Invoke(ctx context.Context, toolList []*models.Tool, name string, args json.RawMessage) (any, error) {
	var argMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argMap); err != nil {
			return nil, fmt.Errorf("tools: decode arguments: %w", err)
		}
	}

	for _, t := range toolList {
		switch t.Config.Kind {
		case models.ToolConfigFunction:
			if t.Name == name {
				return b.sandbox.Execute(ctx, t.ID, argMap, t.Config)
			}
		case models.ToolConfigRemoteMCP:
			conn, err := b.connect(ctx, t)
			if err != nil {
				continue
			}
			if conn.toolNames[name] {
				return b.callMCP(ctx, conn, name, argMap)
			}
		}
	}
	return nil, fmt.Errorf("tools: no bound tool serves %q", name)
}

func (b *Binder) mcpDefinitions(ctx context.Context, t *models.Tool) ([]llm.ToolDefinition, error) {
	conn, err := b.connect(ctx, t)
	if err != nil {
		return nil, err
	}

	result, err := conn.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	defs := make([]llm.ToolDefinition, 0, len(result.Tools))
	for _, mt := range result.Tools {
		schema, _ := json.Marshal(mt.InputSchema)
		defs = append(defs, llm.ToolDefinition{
			Name:        mt.Name,
			Description: mt.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// connect lazily establishes (and caches) the MCP connection for t, issuing
// the protocol handshake and a tool listing to populate the name set used
// by Invoke's routing.
func (b *Binder) connect(ctx context.Context, t *models.Tool) (*mcpConn, error) {
	b.mu.Lock()
	if conn, ok := b.clients[t.ID]; ok {
		b.mu.Unlock()
		return conn, nil
	}
	b.mu.Unlock()

	client, err := mcpclient.NewStreamableHttpClient(t.Config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("tools: new mcp client: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "agentrun", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tools: mcp initialize: %w", err)
	}

	listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tools: mcp list tools: %w", err)
	}
	names := make(map[string]bool, len(listed.Tools))
	for _, mt := range listed.Tools {
		names[mt.Name] = true
	}

	conn := &mcpConn{client: client, toolNames: names}

	b.mu.Lock()
	b.clients[t.ID] = conn
	b.mu.Unlock()
	return conn, nil
}

func (b *Binder) callMCP(ctx context.Context, conn *mcpConn, name string, args map[string]any) (any, error) {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := conn.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tools: mcp call tool %q: %w", name, err)
	}

	if resp.IsError {
		for _, c := range resp.Content {
			if tc, ok := c.(mcpgo.TextContent); ok {
				return nil, fmt.Errorf("tools: tool %q failed: %s", name, tc.Text)
			}
		}
		return nil, fmt.Errorf("tools: tool %q failed", name)
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
		return nil, nil
	case 1:
		return texts[0], nil
	default:
		return texts, nil
	}
}

// Close tears down every cached MCP connection. Called at process shutdown.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.clients {
		_ = conn.client.Close()
		delete(b.clients, id)
	}
}
