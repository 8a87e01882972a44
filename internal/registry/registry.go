// Package registry holds the process-wide shared state a supervisor run
// needs beyond its own goroutine: the session-id-to-PID map used for
// liveness probing and cooperative cancellation, and the session-id-to-
// PTY-writer map an interactive supervisor exposes for approval responses.
//
// Both maps are guarded by a narrow mutex that never wraps I/O — callers
// must tolerate a stale entry for up to one poll interval.
package registry

import (
	"io"
	"sync"
	"syscall"
)

// Process is the process-wide session-id -> PID registry.
type Process struct {
	mu  sync.Mutex
	pid map[string]int
}

// NewProcess returns an empty Process registry.
func NewProcess() *Process {
	return &Process{pid: make(map[string]int)}
}

// Register records the PID for a session. Overwrites any existing entry.
func (r *Process) Register(sessionID string, pid int) {
	r.mu.Lock()
	r.pid[sessionID] = pid
	r.mu.Unlock()
}

// Unregister removes a session's PID entry. Safe to call redundantly.
func (r *Process) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.pid, sessionID)
	r.mu.Unlock()
}

// IsRunning reports whether a session currently has a registered PID —
// this is a presence check, not an OS-level liveness probe. Cancellation
// removes the entry; supervisors observe that as "not running" on their
// next poll.
func (r *Process) IsRunning(sessionID string) bool {
	r.mu.Lock()
	_, ok := r.pid[sessionID]
	r.mu.Unlock()
	return ok
}

// PID returns the registered PID for a session, or 0 if none.
func (r *Process) PID(sessionID string) int {
	r.mu.Lock()
	pid := r.pid[sessionID]
	r.mu.Unlock()
	return pid
}

// Alive performs an OS-level liveness probe for pid: sending signal 0 fails
// with ESRCH if the process is gone, without actually signalling it.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}

// PTYWriter is the process-wide session-id -> interactive-PTY-writer
// registry, letting the UI inject approval responses into a running
// interactive session.
type PTYWriter struct {
	mu     sync.Mutex
	writer map[string]io.Writer
}

// NewPTYWriter returns an empty PTYWriter registry.
func NewPTYWriter() *PTYWriter {
	return &PTYWriter{writer: make(map[string]io.Writer)}
}

// Register binds a writer to a session. An Interactive Supervisor calls
// this once at startup and Unregisters on exit in all cases.
func (r *PTYWriter) Register(sessionID string, w io.Writer) {
	r.mu.Lock()
	r.writer[sessionID] = w
	r.mu.Unlock()
}

// Unregister removes a session's writer. Safe to call redundantly.
func (r *PTYWriter) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.writer, sessionID)
	r.mu.Unlock()
}

// Write looks up the session's writer and writes to it, outside the lock.
// Returns false if no writer is registered for the session.
func (r *PTYWriter) Write(sessionID string, p []byte) (bool, error) {
	r.mu.Lock()
	w, ok := r.writer[sessionID]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	_, err := w.Write(p)
	return true, err
}
