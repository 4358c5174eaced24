//go:build !linux && !darwin

package sandbox

import "os/exec"

// applyPrivilegeDrop is a no-op on platforms without a uid/gid process
// model (spec.md §4.5 step 5: "when the host OS supports it").
func applyPrivilegeDrop(_ *exec.Cmd, _, _ int) {}
