package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error
}

func (f *fakeMessagesClient) New(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, f.err
}

func (f *fakeMessagesClient) NewStreaming(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func TestNewRequiresMessagesClient(t *testing.T) {
	_, err := New(nil, "claude-sonnet-4-5", 1024, 0)
	assert.Error(t, err)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(&fakeMessagesClient{}, "", 1024, 0)
	assert.Error(t, err)
}

func TestCompleteRequiresMessages(t *testing.T) {
	c, err := New(&fakeMessagesClient{}, "claude-sonnet-4-5", 1024, 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &Request{})
	assert.Error(t, err)
}

func TestCompleteRequiresMaxTokens(t *testing.T) {
	c, err := New(&fakeMessagesClient{}, "claude-sonnet-4-5", 0, 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}}},
	})
	assert.Error(t, err)
}

func TestCompleteTranslatesResponse(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			StopReason: sdk.StopReasonEndTurn,
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello there"},
			},
			Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}
	c, err := New(fake, "claude-sonnet-4-5", 1024, 0)
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hello there", resp.Content[0].Text)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestCompletePropagatesRateLimit(t *testing.T) {
	fake := &fakeMessagesClient{err: errors.New("429 Too Many Requests")}
	c, err := New(fake, "claude-sonnet-4-5", 1024, 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestBuildParamsEncodesToolsAndSystem(t *testing.T) {
	fake := &fakeMessagesClient{}
	c, err := New(fake, "claude-sonnet-4-5", 1024, 0)
	require.NoError(t, err)

	req := &Request{
		System: "be concise",
		Messages: []Message{
			{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}},
		},
		Tools: []ToolDefinition{
			{Name: "lookup", Description: "looks things up", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
	}
	params, err := c.buildParams(req)
	require.NoError(t, err)
	assert.Len(t, params.System, 1)
	assert.Len(t, params.Tools, 1)
	assert.Len(t, params.Messages, 1)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(errors.New("received 429 from upstream")))
	assert.True(t, isRateLimited(errors.New("Rate Limit exceeded")))
	assert.False(t, isRateLimited(errors.New("bad request")))
	assert.False(t, isRateLimited(nil))
}
