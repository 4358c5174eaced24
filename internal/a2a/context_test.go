package a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

func TestResolveContextIDPrefersMessageContextID(t *testing.T) {
	msg := apiv1.Message{ContextID: "ctx-1", Metadata: map[string]string{"conversationId": "ctx-2"}}
	assert.Equal(t, "ctx-1", resolveContextID(msg))
}

func TestResolveContextIDFallsBackToMetadataConversationID(t *testing.T) {
	msg := apiv1.Message{Metadata: map[string]string{"conversationId": "ctx-2"}}
	assert.Equal(t, "ctx-2", resolveContextID(msg))
}

func TestResolveContextIDFallsBackToDefaultLiteral(t *testing.T) {
	assert.Equal(t, "default", resolveContextID(apiv1.Message{}))
	assert.Equal(t, "default", resolveContextID(apiv1.Message{Metadata: map[string]string{}}))
}

func TestMetadataValueHandlesNilMetadata(t *testing.T) {
	assert.Equal(t, "", metadataValue(apiv1.Message{}, "fromAgentId"))
}

func TestMetadataValueReadsKnownKey(t *testing.T) {
	msg := apiv1.Message{Metadata: map[string]string{"fromAgentId": "agent-7"}}
	assert.Equal(t, "agent-7", metadataValue(msg, "fromAgentId"))
	assert.Equal(t, "", metadataValue(msg, "fromExternalAgentId"))
}
