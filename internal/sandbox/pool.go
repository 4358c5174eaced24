package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/common/logger"
	"github.com/kandev/agentrun/internal/ledger/models"
)

const defaultTimeout = 30 * time.Second

// entry is one pooled sandbox directory, keyed by dependency hash and
// shared read-only (after creation) across concurrent invocations, per
// spec.md §4.5's concurrency note.
type entry struct {
	dir       string
	kind      ModuleKind
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	useCount int
}

// Pool is the function sandbox pool (C6): it hashes a tool's dependency set
// to a reusable sandbox directory, evicts entries on idle/use limits, and
// executes wrapped function code through a Backend.
type Pool struct {
	cfg     config.SandboxConfig
	backend Backend
	log     *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry

	creationMu sync.Mutex
	creating   map[string]*sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPool builds a Pool and starts its background sweep loop.
func NewPool(cfg config.SandboxConfig, backend Backend, log *logger.Logger) *Pool {
	p := &Pool{
		cfg:      cfg,
		backend:  backend,
		log:      log.WithFields(zap.String("component", "sandbox-pool")),
		entries:  make(map[string]*entry),
		creating: make(map[string]*sync.Mutex),
		stopCh:   make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Stop halts the background sweep loop. It does not destroy pooled entries.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Execute runs cfg.ExecuteCode with args against the dependency-hashed pool
// entry for cfg.Dependencies, implementing spec.md §4.5's six-step
// protocol end to end.
func (p *Pool) Execute(ctx context.Context, toolID string, args map[string]any, cfg models.ToolConfig) (any, error) {
	depHash := DepHash(cfg.Dependencies)
	kind, ambiguous := DetectModuleKindWithAmbiguity(cfg.ExecuteCode)
	if ambiguous {
		p.log.Warn("sandbox: tool code has both ESM and CJS indicators, treating as ESM",
			zap.String("tool_id", toolID))
	}

	e, fresh, err := p.acquireEntry(ctx, depHash, kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("sandbox: prepare entry: %w", err)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("sandbox: marshal args: %w", err)
	}

	out, runErr := p.backend.Run(ctx, e.dir, argsJSON, timeout, p.cfg.KillGrace, p.cfg.OutputCapBytes)
	if runErr != nil {
		if fresh {
			p.destroyEntry(depHash, e)
		}
		return nil, runErr
	}

	return parseResult(out)
}

// acquireEntry implements protocol steps 1-2: reuse a live entry, or create
// one under a per-depHash lock so concurrent first callers for the same
// dependency set don't race to install twice.
func (p *Pool) acquireEntry(ctx context.Context, depHash string, kind ModuleKind, cfg models.ToolConfig) (*entry, bool, error) {
	if e := p.lookupLive(depHash); e != nil {
		e.mu.Lock()
		e.lastUsed = time.Now()
		e.useCount++
		e.mu.Unlock()
		return e, false, nil
	}

	lock := p.creationLock(depHash)
	lock.Lock()
	defer lock.Unlock()

	if e := p.lookupLive(depHash); e != nil {
		e.mu.Lock()
		e.lastUsed = time.Now()
		e.useCount++
		e.mu.Unlock()
		return e, false, nil
	}

	dir, err := os.MkdirTemp("", "agentrun-sandbox-"+depHash+"-")
	if err != nil {
		return nil, false, fmt.Errorf("create sandbox dir: %w", err)
	}
	if err := p.backend.CreateEntry(ctx, dir, kind, cfg.Dependencies, cfg.ExecuteCode); err != nil {
		_ = p.backend.Destroy(dir)
		return nil, false, err
	}

	e := &entry{dir: dir, kind: kind, createdAt: time.Now(), lastUsed: time.Now(), useCount: 1}
	p.mu.Lock()
	p.entries[depHash] = e
	p.mu.Unlock()
	return e, true, nil
}

func (p *Pool) lookupLive(depHash string) *entry {
	p.mu.Lock()
	e, ok := p.entries[depHash]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	expired := time.Since(e.lastUsed) >= p.cfg.MaxIdle || e.useCount >= p.cfg.MaxUses
	e.mu.Unlock()
	if expired {
		p.destroyEntry(depHash, e)
		return nil
	}
	return e
}

func (p *Pool) creationLock(depHash string) *sync.Mutex {
	p.creationMu.Lock()
	defer p.creationMu.Unlock()
	l, ok := p.creating[depHash]
	if !ok {
		l = &sync.Mutex{}
		p.creating[depHash] = l
	}
	return l
}

func (p *Pool) destroyEntry(depHash string, e *entry) {
	p.mu.Lock()
	if cur, ok := p.entries[depHash]; ok && cur == e {
		delete(p.entries, depHash)
	}
	p.mu.Unlock()
	if err := p.backend.Destroy(e.dir); err != nil {
		p.log.Warn("sandbox: destroy entry failed", zap.String("dir", e.dir), zap.Error(err))
	}
}

func (p *Pool) sweepLoop() {
	interval := p.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	p.mu.Lock()
	stale := make(map[string]*entry)
	for depHash, e := range p.entries {
		e.mu.Lock()
		expired := time.Since(e.lastUsed) >= p.cfg.MaxIdle || e.useCount >= p.cfg.MaxUses
		e.mu.Unlock()
		if expired {
			stale[depHash] = e
		}
	}
	p.mu.Unlock()

	for depHash, e := range stale {
		p.destroyEntry(depHash, e)
	}
}

type sandboxResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result"`
	Error   string `json:"error"`
}

// parseResult reads the last line of combined sandbox output as protocol
// step 6 requires and translates a {success:false} payload into a
// *ToolError rather than a generic failure.
func parseResult(out []byte) (any, error) {
	line := lastNonEmptyLine(out)
	if line == "" {
		return nil, fmt.Errorf("sandbox: no result line produced")
	}

	var r sandboxResult
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, fmt.Errorf("sandbox: malformed result line: %w", err)
	}
	if !r.Success {
		return nil, &ToolError{Message: r.Error}
	}
	return r.Result, nil
}

func lastNonEmptyLine(out []byte) string {
	lines := splitLines(out)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			return lines[i]
		}
	}
	return ""
}

func splitLines(out []byte) []string {
	var lines []string
	start := 0
	for i, b := range out {
		if b == '\n' {
			lines = append(lines, string(out[start:i]))
			start = i + 1
		}
	}
	if start < len(out) {
		lines = append(lines, string(out[start:]))
	}
	return lines
}
