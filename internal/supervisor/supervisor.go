// Package supervisor owns the lifecycle of a running CLI child: resolving
// its binary, building argv/env via argbuild, wiring stdio, registering the
// PID for liveness/cancellation, tailing its output into the Item Folder,
// and emitting UI events through an Emitter. Two flavors exist: Detached
// (stdio bound to files, the child outlives the supervisor) and Interactive
// (a PTY, for approval-driven build-mode sessions).
package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/agentsup/agentsup/internal/agentmeta"
)

// Timing constants are fixed configuration, not computed: the spec treats
// them as wall-clock policy, not something derived from measurement.
const (
	StartupTimeout     = 120 * time.Second
	DeadProcessTimeout = 2 * time.Second
	PollInterval       = 50 * time.Millisecond
	StderrTailBytes    = 8 * 1024
	StderrTailLines    = 80
)

// resolveBinary finds the CLI binary for an agent tag on PATH. Grounded on
// the teacher's codex/claude agents, which default cfg.Command to the
// agent's own binary name and let exec.LookPath fail fast.
func resolveBinary(agentTag string) (string, error) {
	info, ok := agentmeta.InfoFor(agentTag)
	if !ok || info.Binary == "" {
		return "", fmt.Errorf("supervisor: unknown agent %q", agentTag)
	}
	path, err := exec.LookPath(info.Binary)
	if err != nil {
		return "", fmt.Errorf("supervisor: resolve %q: %w", info.Binary, err)
	}
	return path, nil
}

// setpgid configures cmd to run in its own process group so the whole tree
// can be killed by PID, matching the teacher's codex/claude agents.
func setpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree sends sig to the process group rooted at pid (negative pid),
// falling back to killing the single process if the group signal fails.
func killTree(pid int, sig syscall.Signal) {
	if pid <= 0 {
		return
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		syscall.Kill(pid, sig)
	}
}
