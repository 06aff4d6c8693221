// Package task implements the cron task runner: the per-invocation state
// machine that tracks one dispatched command from creation through exit,
// ported from flux-core's src/modules/cron/task.c.
package task

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Handle is the live handle to a dispatched subprocess, satisfied by
// pkg/executor's implementations. Task only needs enough of the handle to
// signal it; the executor owns the actual process lifecycle.
type Handle interface {
	PID() int
	Signal(sig syscall.Signal) error
}

// Task is one invocation of a cron entry's command. Its unexported state
// is guarded by the task's own mutex; mutation happens solely through the
// methods below, which may be called from any goroutine.
type Task struct {
	mu sync.Mutex

	Rank       int
	Command    string
	Cwd        string
	Env        []string
	Timeout    time.Duration
	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	// TraceID is a random identifier assigned at creation. It has no
	// analogue in the original C task struct and is not included in
	// ToValue.
	TraceID string

	handle Handle

	started     bool
	exited      bool
	timedout    bool
	execFailed  bool
	execErrno   int
	rexecFailed bool
	rexecErrno  int

	exitCode int
	signaled bool
	signal   syscall.Signal

	stdoutTail string
	stderrTail string
}

// New creates a task for the given command, not yet started.
func New(rank int, command, cwd string, env []string, timeout time.Duration) *Task {
	return &Task{
		Rank:       rank,
		Command:    command,
		Cwd:        cwd,
		Env:        env,
		Timeout:    timeout,
		CreateTime: time.Now(),
		TraceID:    uuid.NewString(),
	}
}

// Started reports whether the task's command has been handed to the
// executor (regardless of whether exec(2) itself succeeded).
func (t *Task) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Exited reports whether the task has reached a terminal state.
func (t *Task) Exited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exited
}

// MarkStarted records that the task's process now exists, with pid known.
func (t *Task) MarkStarted(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	t.handle = h
	t.StartTime = time.Now()
}

// MarkRexecFailed records that the remote-exec dispatch itself failed
// before a process could be created (the dispatch façade refused or
// errored). This is terminal: the task never started.
func (t *Task) MarkRexecFailed(errno int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rexecFailed = true
	t.rexecErrno = errno
	t.exited = true
	t.EndTime = time.Now()
}

// MarkExecFailed records that the process was created but exec(2) of the
// command itself failed (e.g. command not found). Terminal.
func (t *Task) MarkExecFailed(errno int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.execFailed = true
	t.execErrno = errno
	t.exited = true
	t.EndTime = time.Now()
}

// MarkTimedOut records that the task's timeout elapsed before it exited.
// The caller is still responsible for killing the process and eventually
// calling MarkExited once the kill completes.
func (t *Task) MarkTimedOut() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timedout = true
}

// MarkExited records the terminal wait status of a task that ran to
// completion (however it completed).
func (t *Task) MarkExited(exitCode int, signaled bool, sig syscall.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exited = true
	t.exitCode = exitCode
	t.signaled = signaled
	t.signal = sig
	t.EndTime = time.Now()
}

// SetOutputTail records a truncated tail of the task's stdout/stderr, for
// inclusion in ToValue. Mirrors task.c's io_cb, which keeps only the last
// complete lines read from each stream.
func (t *Task) SetOutputTail(stdout, stderr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stdoutTail = stdout
	t.stderrTail = stderr
}

// Kill signals the task's process, if one exists yet.
func (t *Task) Kill(sig syscall.Signal) error {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Signal(sig)
}

// Failed reports whether a task that exited did so unsuccessfully: a
// nonzero exit status, a fatal signal, or an exec/rexec failure.
func (t *Task) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failedLocked()
}

func (t *Task) failedLocked() bool {
	if t.rexecFailed || t.execFailed {
		return true
	}
	if !t.exited {
		return false
	}
	return t.signaled || t.exitCode != 0
}

// Code returns the task's terminal exit code: the raw exit status, or
// 128+signal if the task died by signal. Mirrors task.c's WEXITSTATUS /
// 128+WTERMSIG encoding.
func (t *Task) Code() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.signaled {
		return 128 + int(t.signal)
	}
	return t.exitCode
}

// StateString reports the task's current state as one of the exact
// strings the original C implementation produces: "Deferred", "Rexec
// Failure", "Exec Failure", "Running", "Timeout", "Failed", or "Exited".
func (t *Task) StateString() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateStringLocked()
}

func (t *Task) stateStringLocked() string {
	switch {
	case t.rexecFailed:
		return "Rexec Failure"
	case t.execFailed:
		return "Exec Failure"
	case !t.started:
		return "Deferred"
	case !t.exited:
		if t.timedout {
			return "Timeout"
		}
		return "Running"
	case t.failedLocked():
		return "Failed"
	default:
		return "Exited"
	}
}

// ToValue renders the task as a JSON-serializable structure, matching the
// field set (and omission rules) of task.c's cron_task_to_json: always
// rank/state/create-time; pid once the task has a process handle;
// conditionally rexec_errno/exec_errno, timedout, code,
// start-time/running-time/end-time.
func (t *Task) ToValue() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := map[string]any{
		"rank":        t.Rank,
		"state":       t.stateStringLocked(),
		"create-time": t.CreateTime.Unix(),
	}
	if t.handle != nil {
		v["pid"] = t.handle.PID()
	}
	if t.rexecFailed {
		v["rexec_errno"] = t.rexecErrno
		return v
	}
	if t.execFailed {
		v["exec_errno"] = t.execErrno
		return v
	}
	if t.started {
		v["start-time"] = t.StartTime.Unix()
	}
	if t.timedout {
		v["timedout"] = true
	}
	if t.exited {
		v["code"] = t.Code()
		v["end-time"] = t.EndTime.Unix()
		v["running-time"] = t.EndTime.Sub(t.StartTime).Seconds()
		if t.stdoutTail != "" {
			v["stdout"] = t.stdoutTail
		}
		if t.stderrTail != "" {
			v["stderr"] = t.stderrTail
		}
	} else if t.started {
		v["running-time"] = time.Since(t.StartTime).Seconds()
	}
	return v
}

// String implements fmt.Stringer for log lines.
func (t *Task) String() string {
	return fmt.Sprintf("task[%d] %s (%s)", t.Rank, t.Command, t.StateString())
}
