package signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSwitch(t *testing.T) *KillSwitch {
	t.Helper()
	return newSwitchIn(t, filepath.Join(t.TempDir(), "signals"), "thread-1")
}

func newSwitchIn(t *testing.T, dir, threadID string) *KillSwitch {
	t.Helper()
	ks, err := New(dir, threadID)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestNew_CreatesDirectory(t *testing.T) {
	ks := newSwitch(t)
	if info, err := os.Stat(ks.Dir()); err != nil || !info.IsDir() {
		t.Errorf("signals directory not created: %v", err)
	}
	if ks.Stopped() {
		t.Error("fresh switch reports stopped")
	}
}

func TestContext_CancelledBySend(t *testing.T) {
	ks := newSwitch(t)
	ctx, cancel := ks.Context(context.Background())
	defer cancel()

	if err := ks.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Stopped checks the file directly, so the context trips even if the
	// watcher event is slow.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(context.Cause(ctx), ErrStopped) {
				t.Errorf("cause = %v, want ErrStopped", context.Cause(ctx))
			}
			return
		case <-deadline:
			t.Fatal("context was not cancelled")
		case <-time.After(50 * time.Millisecond):
			ks.Stopped()
		}
	}
}

func TestContext_ParentCancel(t *testing.T) {
	ks := newSwitch(t)
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := ks.Context(parent)
	defer cancel()

	cancelParent()
	<-ctx.Done()
	if errors.Is(context.Cause(ctx), ErrStopped) {
		t.Error("parent cancellation reported as stop signal")
	}
}

func TestClear_Rearms(t *testing.T) {
	ks := newSwitch(t)
	if err := ks.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !ks.Stopped() {
		t.Fatal("expected stopped after Send")
	}

	if err := ks.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(ks.Path()); !os.IsNotExist(err) {
		t.Errorf("stop file still present: %v", err)
	}
	if ks.Stopped() {
		t.Error("expected switch re-armed after Clear")
	}
}

func TestNew_RequiresThreadID(t *testing.T) {
	if _, err := New(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty thread id")
	}
}

func TestStopFile(t *testing.T) {
	if got := StopFile("abc"); got != "stop-abc" {
		t.Errorf("StopFile = %q, want %q", got, "stop-abc")
	}
}

func TestClear_LeavesOtherThreads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")
	a := newSwitchIn(t, dir, "thread-a")
	b := newSwitchIn(t, dir, "thread-b")

	if err := Send(dir, "thread-b"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if a.Stopped() {
		t.Error("thread-a tripped by thread-b's stop file")
	}

	// A new run of thread-a clears only its own file.
	if err := a.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, StopFile("thread-b"))); err != nil {
		t.Errorf("thread-b stop file removed: %v", err)
	}
	if !b.Stopped() {
		t.Error("expected thread-b stopped")
	}
}

func TestClear_MissingFile(t *testing.T) {
	ks := newSwitch(t)
	if err := ks.Clear(); err != nil {
		t.Errorf("Clear with no stop file = %v, want nil", err)
	}
}

func TestClear_ReportsRemoveError(t *testing.T) {
	ks := newSwitch(t)

	// A non-empty directory in place of the stop file cannot be removed.
	if err := os.MkdirAll(filepath.Join(ks.Path(), "keep"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := ks.Clear(); err == nil {
		t.Fatal("expected Clear to report the remove error")
	}
	if !ks.Stopped() {
		t.Error("switch re-armed although the stop file is still present")
	}
}
