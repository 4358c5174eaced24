//go:build linux || darwin

package sandbox

import (
	"os/exec"
	"syscall"
)

// applyPrivilegeDrop sets the sandboxed process's uid/gid via SysProcAttr,
// per spec.md §4.5 step 5's "drop privileges ... when the host OS supports
// it". uid/gid of 0 leaves the process running as the current user.
func applyPrivilegeDrop(cmd *exec.Cmd, uid, gid int) {
	if uid == 0 && gid == 0 {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		},
	}
}
