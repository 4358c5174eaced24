package sandbox

import (
	"context"
	"time"
)

// Backend isolates the mechanics of installing dependencies into a fresh
// sandbox directory and of running the wrapped entry file within one.
// ProcessBackend (default) and DockerBackend (spec.md §4.5's "host OS
// supports it" alternate, container-level) both implement this.
type Backend interface {
	// CreateEntry provisions dir: writes the dependency manifest and entry
	// file, and installs dependencies. Called once per depHash, under the
	// pool's per-depHash creation lock.
	CreateEntry(ctx context.Context, dir string, kind ModuleKind, deps map[string]string, userCode string) error

	// Run executes the entry file already written into dir, feeding it
	// argsJSON on stdin, and returns the combined stdout+stderr captured up
	// to outputCap bytes (or ErrOutputTooLarge if the process kept writing
	// past it). timeout bounds wall-clock execution. For ProcessBackend
	// killGrace is the delay between SIGTERM and SIGKILL; DockerBackend
	// kills with SIGKILL directly and uses killGrace to bound the forced
	// container removal.
	Run(ctx context.Context, dir string, argsJSON []byte, timeout, killGrace time.Duration, outputCap int64) ([]byte, error)

	// Destroy removes a sandbox directory and any backend-specific
	// resources (e.g. a docker volume) associated with it.
	Destroy(dir string) error
}
