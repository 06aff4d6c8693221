package task

import (
	"syscall"
	"testing"
	"time"
)

type fakeHandle struct {
	pid     int
	signals []syscall.Signal
}

func (f *fakeHandle) PID() int { return f.pid }
func (f *fakeHandle) Signal(sig syscall.Signal) error {
	f.signals = append(f.signals, sig)
	return nil
}

func TestNewTaskIsDeferred(t *testing.T) {
	tk := New(1, "echo hi", "/tmp", nil, 0)
	if got := tk.StateString(); got != "Deferred" {
		t.Fatalf("new task state = %q, want Deferred", got)
	}
	if tk.TraceID == "" {
		t.Fatal("expected a non-empty trace id")
	}
}

func TestRunningThenExitedSuccessfully(t *testing.T) {
	tk := New(1, "echo hi", "/tmp", nil, 0)
	tk.MarkStarted(&fakeHandle{pid: 123})
	if got := tk.StateString(); got != "Running" {
		t.Fatalf("state = %q, want Running", got)
	}
	tk.MarkExited(0, false, 0)
	if got := tk.StateString(); got != "Exited" {
		t.Fatalf("state = %q, want Exited", got)
	}
	if tk.Failed() {
		t.Fatal("zero exit should not be Failed")
	}
	if tk.Code() != 0 {
		t.Fatalf("Code() = %d, want 0", tk.Code())
	}
}

func TestNonzeroExitIsFailed(t *testing.T) {
	tk := New(1, "false", "/tmp", nil, 0)
	tk.MarkStarted(&fakeHandle{pid: 1})
	tk.MarkExited(1, false, 0)
	if got := tk.StateString(); got != "Failed" {
		t.Fatalf("state = %q, want Failed", got)
	}
	if tk.Code() != 1 {
		t.Fatalf("Code() = %d, want 1", tk.Code())
	}
}

func TestSignaledTaskEncodesCode(t *testing.T) {
	tk := New(1, "sleep 100", "/tmp", nil, 0)
	tk.MarkStarted(&fakeHandle{pid: 1})
	tk.MarkExited(0, true, syscall.SIGKILL)
	if !tk.Failed() {
		t.Fatal("signaled task should be Failed")
	}
	want := 128 + int(syscall.SIGKILL)
	if tk.Code() != want {
		t.Fatalf("Code() = %d, want %d", tk.Code(), want)
	}
}

func TestTimeoutBeforeExit(t *testing.T) {
	tk := New(1, "sleep 100", "/tmp", nil, time.Second)
	tk.MarkStarted(&fakeHandle{pid: 1})
	tk.MarkTimedOut()
	if got := tk.StateString(); got != "Timeout" {
		t.Fatalf("state = %q, want Timeout", got)
	}
	tk.MarkExited(0, true, syscall.SIGTERM)
	if got := tk.StateString(); got != "Failed" {
		t.Fatalf("state after exit = %q, want Failed", got)
	}
}

func TestExecFailureIsTerminalAndPreserved(t *testing.T) {
	tk := New(1, "/no/such/binary", "/tmp", nil, 0)
	tk.MarkExecFailed(2) // ENOENT
	if got := tk.StateString(); got != "Exec Failure" {
		t.Fatalf("state = %q, want Exec Failure", got)
	}
	if !tk.Exited() {
		t.Fatal("exec failure should be terminal")
	}
	v := tk.ToValue()
	if v["exec_errno"] != 2 {
		t.Fatalf("ToValue()[exec_errno] = %v, want 2", v["exec_errno"])
	}
}

func TestRexecFailurePrecedesExecFailure(t *testing.T) {
	tk := New(1, "echo hi", "/tmp", nil, 0)
	tk.MarkRexecFailed(13) // EACCES
	tk.MarkExecFailed(2)   // ENOENT
	if got := tk.StateString(); got != "Rexec Failure" {
		t.Fatalf("state = %q, want Rexec Failure", got)
	}
	v := tk.ToValue()
	if _, ok := v["exec_errno"]; ok {
		t.Fatal("rexec failure should not also report exec_errno")
	}
}

func TestKillSignalsHandle(t *testing.T) {
	tk := New(1, "sleep 100", "/tmp", nil, 0)
	h := &fakeHandle{pid: 42}
	tk.MarkStarted(h)
	if err := tk.Kill(syscall.SIGTERM); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if len(h.signals) != 1 || h.signals[0] != syscall.SIGTERM {
		t.Fatalf("signals = %v, want [SIGTERM]", h.signals)
	}
}

func TestKillBeforeStartIsNoop(t *testing.T) {
	tk := New(1, "sleep 100", "/tmp", nil, 0)
	if err := tk.Kill(syscall.SIGTERM); err != nil {
		t.Fatalf("Kill on unstarted task: %v", err)
	}
}
