package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
)

// ProcessBackend runs sandboxed function code as a bare Node.js subprocess,
// privilege-dropped to a fixed uid/gid where the host OS supports it.
// Grounded on the teacher's internal/agentctl/process.Manager: pipe-backed
// exec.Cmd, SIGTERM-then-grace-then-SIGKILL shutdown, exit-code/error
// bookkeeping — generalized from a long-lived interactive agent process to
// one-shot invocations.
type ProcessBackend struct {
	nodeBin  string
	runAsUID int
	runAsGID int
	log      *logger.Logger
}

// NewProcessBackend builds a ProcessBackend. runAsUID/runAsGID of 0 mean
// "do not attempt privilege drop" (the default process identity is used).
func NewProcessBackend(nodeBin string, runAsUID, runAsGID int, log *logger.Logger) *ProcessBackend {
	if nodeBin == "" {
		nodeBin = "node"
	}
	return &ProcessBackend{nodeBin: nodeBin, runAsUID: runAsUID, runAsGID: runAsGID, log: log.WithFields(zap.String("component", "sandbox-process-backend"))}
}

func (b *ProcessBackend) CreateEntry(ctx context.Context, dir string, kind ModuleKind, deps map[string]string, userCode string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create sandbox dir: %w", err)
	}

	entryPath := filepath.Join(dir, entryFilename)
	if err := os.WriteFile(entryPath, []byte(renderEntryFile(kind, userCode)), 0o600); err != nil {
		return fmt.Errorf("write entry file: %w", err)
	}

	manifestPath := filepath.Join(dir, "package.json")
	if err := os.WriteFile(manifestPath, []byte(packageJSON(kind, deps)), 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if len(deps) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, "npm", "install", "--no-audit", "--no-fund", "--omit=dev")
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("install dependencies: %w: %s", err, out.String())
	}
	return nil
}

func (b *ProcessBackend) Run(ctx context.Context, dir string, argsJSON []byte, timeout, killGrace time.Duration, outputCap int64) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.nodeBin, entryFilename)
	cmd.Dir = dir
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace
	applyPrivilegeDrop(cmd, b.runAsUID, b.runAsGID)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox stdin pipe: %w", err)
	}
	out := newCappedWriter(outputCap)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sandbox process: %w", err)
	}

	if _, err := stdin.Write(argsJSON); err != nil {
		b.log.Warn("sandbox: write args failed", zap.Error(err))
	}
	_ = stdin.Close()

	waitErr := cmd.Wait()

	if out.Overflowed() {
		return nil, ErrOutputTooLarge
	}
	if runCtx.Err() != nil {
		return nil, ErrTimeout
	}
	if waitErr != nil {
		return nil, fmt.Errorf("sandbox process failed: %w: %s", waitErr, truncateTail(out.Bytes(), 2048))
	}
	return out.Bytes(), nil
}

func (b *ProcessBackend) Destroy(dir string) error {
	return os.RemoveAll(dir)
}

func truncateTail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
