package a2a

import apiv1 "github.com/kandev/agentrun/pkg/api/v1"

// resolveContextID implements spec.md §4.6's contextId resolution: the first
// non-empty of the message's own contextId, then its
// metadata["conversationId"], else the literal "default".
func resolveContextID(msg apiv1.Message) string {
	if msg.ContextID != "" {
		return msg.ContextID
	}
	if msg.Metadata != nil {
		if v := msg.Metadata["conversationId"]; v != "" {
			return v
		}
	}
	return "default"
}

func metadataValue(msg apiv1.Message, key string) string {
	if msg.Metadata == nil {
		return ""
	}
	return msg.Metadata[key]
}
