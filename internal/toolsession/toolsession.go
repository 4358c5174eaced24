// Package toolsession is the in-memory tool-call scratchpad shared by every
// agent reached within a single graph execution (spec.md §4.4).
package toolsession

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
)

const (
	sessionTTL    = 5 * time.Minute
	sweepInterval = 60 * time.Second
)

// ToolResult is one recorded tool invocation.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Args       map[string]any
	Result     any
	Timestamp  time.Time
}

type session struct {
	mu        sync.Mutex
	tenantID  string
	projectID string
	contextID string
	taskID    string
	createdAt time.Time
	results   map[string]ToolResult
}

// Manager is the process-wide singleton tool session manager. It owns no
// authoritative state — entries may be reconstructed at any time and
// surviving a process restart is not a requirement (spec.md §3 ownership).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	log      *logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager starts the background sweep goroutine and returns the manager.
// Call Stop to shut the sweep down (e.g. during graceful server shutdown).
func NewManager(log *logger.Logger) *Manager {
	m := &Manager{
		sessions: make(map[string]*session),
		log:      log,
		stopCh:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Stop halts the background sweep goroutine.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// EnsureGraphSession idempotently creates (or returns an existing) session
// id for a graph execution. sessionID, when non-empty, identifies an
// existing execution — sub-agents reached by transfer/delegate within the
// same user turn pass it through so they observe earlier tool results.
func (m *Manager) EnsureGraphSession(sessionID, tenantID, projectID, contextID, taskID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if s, ok := m.sessions[sessionID]; ok {
			s.mu.Lock()
			s.taskID = taskID
			s.mu.Unlock()
			return sessionID
		}
	}

	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	m.sessions[id] = &session{
		tenantID:  tenantID,
		projectID: projectID,
		contextID: contextID,
		taskID:    taskID,
		createdAt: time.Now(),
		results:   make(map[string]ToolResult),
	}
	return id
}

// RecordToolResult stores a tool invocation's result. An unknown session is
// warn-and-dropped, never an error — the session may have legitimately
// expired mid-turn.
func (m *Manager) RecordToolResult(sessionID string, result ToolResult) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		m.log.Warn("toolsession: record dropped, session unknown",
			zap.String("session_id", sessionID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ToolCallID] = result
}

// GetToolResult returns a previously recorded result, or nil if absent.
func (m *Manager) GetToolResult(sessionID, toolCallID string) *ToolResult {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[toolCallID]
	if !ok {
		return nil
	}
	return &r
}

// EndSession removes a session immediately, ahead of its TTL.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-sessionTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.createdAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
