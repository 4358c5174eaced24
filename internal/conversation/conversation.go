// Package conversation shapes a conversation's message/artifact history
// into what an agent's prompt actually sees.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kandev/agentrun/internal/ledger"
	"github.com/kandev/agentrun/internal/ledger/models"
)

// Filters narrows a "scoped" history request. When both are set they
// conjoin: a message must satisfy both to survive.
type Filters struct {
	AgentID string
	TaskID  string
}

// Service implements the conversation operations in spec.md §4.3.
type Service struct {
	store ledger.Store
}

func New(store ledger.Store) *Service {
	return &Service{store: store}
}

// AppendMessage is an unconditional insert.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.store.AppendMessage(ctx, msg)
}

// History returns the ordered message list a cfg shapes out of a
// conversation, applying mode/filter/limit/token-budget rules in that
// order, per spec.md §4.3.
func (s *Service) History(ctx context.Context, tenantID, projectID, conversationID string, cfg models.ConversationHistoryConfig, filters *Filters) ([]*models.Message, error) {
	if cfg.Mode == "none" {
		return nil, nil
	}

	all, err := s.store.ListMessages(ctx, tenantID, projectID, conversationID)
	if err != nil {
		return nil, err
	}

	typeSet := messageTypeSet(cfg.MessageTypes)

	var shaped []*models.Message
	for _, m := range all {
		if !typeSet[string(m.MessageType)] {
			continue
		}
		if !cfg.IncludeInternal && m.Visibility == models.VisibilityInternal {
			continue
		}

		switch cfg.Mode {
		case "full":
			shaped = append(shaped, m)
		case "scoped":
			if matchesScoped(m, filters) {
				shaped = append(shaped, m)
			}
		}
	}

	if cfg.Limit > 0 && len(shaped) > cfg.Limit {
		shaped = shaped[len(shaped)-cfg.Limit:]
	}

	if cfg.MaxOutputTokens > 0 {
		shaped = truncateToTokenBudget(shaped, cfg.MaxOutputTokens)
	}

	return shaped, nil
}

// matchesScoped applies spec.md §4.3's scoped-mode rule: user messages
// always survive; an agent message survives when it satisfies every active
// filter (conjunction when both agentId and taskId are set).
func matchesScoped(m *models.Message, filters *Filters) bool {
	if m.Role == models.RoleUser {
		return true
	}
	if filters == nil {
		return true
	}

	if filters.AgentID != "" {
		matchesAgent := (m.Visibility == models.VisibilityUserFacing && m.FromAgentID == filters.AgentID) ||
			m.FromAgentID == filters.AgentID || m.ToAgentID == filters.AgentID
		if !matchesAgent {
			return false
		}
	}
	if filters.TaskID != "" {
		matchesTask := m.TaskID == filters.TaskID || m.A2ATaskID == filters.TaskID
		if !matchesTask {
			return false
		}
	}
	return true
}

func messageTypeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return map[string]bool{
			string(models.MessageTypeChat):        true,
			string(models.MessageTypeA2ARequest):  true,
			string(models.MessageTypeA2AResponse): true,
			string(models.MessageTypeSystem):      true,
		}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// estimateTokens is a rough, dependency-free approximation (~4 chars/token)
// used only to decide a truncation boundary, not for billing.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// truncateToTokenBudget drops the oldest messages until the remainder fits
// maxTokens, then prepends a synthetic system summary noting the drop.
func truncateToTokenBudget(msgs []*models.Message, maxTokens int) []*models.Message {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Text)
	}
	if total <= maxTokens {
		return msgs
	}

	dropped := 0
	start := 0
	for start < len(msgs) && total > maxTokens {
		total -= estimateTokens(msgs[start].Text)
		start++
		dropped++
	}
	kept := msgs[start:]

	summary := &models.Message{
		TenantID:       kept0TenantID(kept),
		Role:           models.RoleSystem,
		MessageType:    models.MessageTypeSystem,
		Visibility:     models.VisibilityInternal,
		Text:           fmt.Sprintf("[%d earlier message(s) truncated to fit the context budget]", dropped),
		CreatedAt:      msgs[0].CreatedAt,
	}
	return append([]*models.Message{summary}, kept...)
}

func kept0TenantID(kept []*models.Message) string {
	if len(kept) == 0 {
		return ""
	}
	return kept[0].TenantID
}

// FormattedHistory renders history as a deterministic prompt string. The
// message matching currentTurnText is dropped so the current user turn is
// never duplicated in its own history.
func (s *Service) FormattedHistory(ctx context.Context, tenantID, projectID, conversationID string, cfg models.ConversationHistoryConfig, filters *Filters, currentTurnText string) (string, error) {
	msgs, err := s.History(ctx, tenantID, projectID, conversationID, cfg, filters)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range msgs {
		if m.Role == models.RoleUser && m.Text == currentTurnText {
			continue
		}
		b.WriteString(roleLabel(m))
		b.WriteString(`: """`)
		b.WriteString(m.Text)
		b.WriteString(`"""` + "\n")
	}
	return b.String(), nil
}

func roleLabel(m *models.Message) string {
	switch {
	case m.Role == models.RoleUser:
		return "user"
	case m.MessageType == models.MessageTypeA2ARequest || m.MessageType == models.MessageTypeA2AResponse:
		from := coalesce(m.FromAgentID, m.FromExternalAgentID)
		to := coalesce(m.ToAgentID, m.ToExternalAgentID)
		return fmt.Sprintf("%s to %s", from, to)
	case m.Role == models.RoleAgent && m.Visibility == models.VisibilityUserFacing:
		return fmt.Sprintf("%s to User", coalesce(m.FromAgentID, "agent"))
	default:
		return string(m.Role)
	}
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ScopedArtifacts returns artifacts attached to tasks referenced by the
// messages that survive cfg's scoping. On any error it returns empty —
// never falling back to an unscoped artifact list (spec.md §4.3).
func (s *Service) ScopedArtifacts(ctx context.Context, tenantID, projectID, conversationID string, cfg models.ConversationHistoryConfig, filters *Filters) []*models.Artifact {
	msgs, err := s.History(ctx, tenantID, projectID, conversationID, cfg, filters)
	if err != nil {
		return nil
	}

	taskIDSet := map[string]bool{}
	for _, m := range msgs {
		if m.TaskID != "" {
			taskIDSet[m.TaskID] = true
		}
	}
	if len(taskIDSet) == 0 {
		return nil
	}
	taskIDs := make([]string, 0, len(taskIDSet))
	for id := range taskIDSet {
		taskIDs = append(taskIDs, id)
	}

	artifacts, err := s.store.ListArtifactsByTaskIDs(ctx, tenantID, projectID, taskIDs)
	if err != nil {
		return nil
	}
	return artifacts
}
