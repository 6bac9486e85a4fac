package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"healthvault/internal/notify"
	"healthvault/internal/reminder"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthvault.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `{"storage": {"driver": "cloud"}}`)
	if _, err := New(path, Options{LogLevel: "error"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestCLIFlowWithoutDaemon(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := writeConfig(t, `{"storage": {"driver": "memory"}, "scheduler": {"timezone": "UTC"}}`)
	a, err := New(path, Options{LogLevel: "error"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	r, err := a.Manager().Create(ctx, "Take pill", time.Now().Add(2*time.Hour), true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snap, err := a.Scheduler().Snapshot(ctx)
	if err != nil || len(snap) != 1 || snap[0].ID != r.ID || snap[0].Armed {
		t.Fatalf("Snapshot = %+v, %v", snap, err)
	}
	if err := a.Manager().Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	live, _ := a.Scheduler().Live(ctx)
	list, _ := a.Manager().List(ctx)
	if len(live) != 0 || len(list) != 0 {
		t.Fatalf("after delete: live=%v list=%v", live, list)
	}
}

func TestDaemonFiresAndReconciles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := writeConfig(t, `{"storage": {"driver": "file", "path": "`+filepath.ToSlash(t.TempDir())+`"}, "scheduler": {"timezone": "UTC"}}`)
	a, err := New(path, Options{LogLevel: "error"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fired, unsub := a.Bus().Subscribe(4, reminder.EventFired)
	defer unsub()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// One-shots are minute precision, so a pick within the current minute is
	// already due once armed.
	r, err := a.Manager().Create(ctx, "Stretch", time.Now().Add(time.Second), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case e := <-fired:
		if fe, ok := e.Data.(notify.FiredEvent); !ok || fe.ID != r.ID || fe.Body != "Stretch" {
			t.Fatalf("fired event = %#v", e.Data)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("reminder never fired")
	}

	pruned, err := a.Manager().Reconcile(ctx)
	if err != nil || len(pruned) != 1 || pruned[0].ID != r.ID {
		t.Fatalf("Reconcile = %+v, %v", pruned, err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
