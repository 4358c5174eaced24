package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// ErrRateLimited wraps a rate-limited Anthropic response so callers can
// distinguish it from other invocation failures (e.g. to back off a turn
// and retry rather than failing the task outright).
var ErrRateLimited = errors.New("llm: rate limited")

// MessagesClient is the subset of the Anthropic SDK this package drives;
// satisfied by *sdk.MessageService so tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements one-turn model invocation on top of Anthropic Claude
// Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds a Client from an existing Anthropic Messages client.
func New(msg MessagesClient, defaultModel string, maxTokens int, temperature float64) (*Client, error) {
	if msg == nil {
		return nil, errors.New("llm: anthropic messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("llm: default model identifier is required")
	}
	return &Client{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens, temperature: temperature}, nil
}

// NewFromAPIKey builds a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, baseURL, defaultModel string, maxTokens int, temperature float64) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	ac := sdk.NewClient(opts...)
	return New(&ac.Messages, defaultModel, maxTokens, temperature)
}

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("llm: messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

// Stream issues Messages.NewStreaming and adapts events into Chunks.
func (c *Client) Stream(ctx context.Context, req *Request) (*Streamer, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("llm: messages.new stream: %w", err)
	}
	return newStreamer(ctx, stream), nil
}

func (c *Client) buildParams(req *Request) (*sdk.MessageNewParams, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("llm: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("llm: max_tokens must be positive")
	}

	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return &params, nil
}

func encodeMessages(msgs []Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(b.Text))
				}
			case "tool_use":
				var input any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("llm: decode tool_use input: %w", err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case "tool_result":
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.ToolResultContent, b.IsError))
			default:
				return nil, fmt.Errorf("llm: unsupported content block type %q", b.Type)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("llm: unsupported role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("llm: at least one non-empty message is required")
	}
	return out, nil
}

func encodeTools(defs []ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := decodeSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("llm: tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: block.Text})
			}
		case "tool_use":
			input, _ := json.Marshal(block.Input)
			resp.Content = append(resp.Content, ContentBlock{
				Type:      "tool_use",
				ToolUseID: block.ID,
				ToolName:  block.Name,
				ToolInput: input,
			})
		}
	}
	resp.Usage = Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return resp
}

// isRateLimited best-effort detects a 429 from the SDK's error text. Rather
// than assert a specific SDK error type (which varies by release), this
// inspects the rendered message the same way the teacher's exec-based error
// handling inspects stderr text elsewhere in the corpus.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
