package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []struct{ path, employee string }
}

func (r *recorder) record(path, employee string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct{ path, employee string }{path, employee})
}

func (r *recorder) wait(t *testing.T, n int) []struct{ path, employee string } {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		got := len(r.calls)
		r.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]struct{ path, employee string }, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestEmployeeOf(t *testing.T) {
	cases := []struct {
		root, path, want string
	}{
		{"/drop", "/drop/Alice Smith/inv.pdf", "Alice Smith"},
		{"/drop", "/drop/Bob/sub/inv.pdf", "Bob"},
		{"/drop", "/drop/inv.pdf", unknownEmployee},
	}
	for _, tc := range cases {
		if got := employeeOf(tc.root, tc.path); got != tc.want {
			t.Errorf("employeeOf(%q, %q) = %q, want %q", tc.root, tc.path, got, tc.want)
		}
	}
}

func TestMatchExtension(t *testing.T) {
	exts := []string{".pdf", "txt"}
	if !matchExtension("/x/a.PDF", exts) {
		t.Error("expected .PDF to match")
	}
	if !matchExtension("/x/a.txt", exts) {
		t.Error("expected .txt to match")
	}
	if matchExtension("/x/a.png", exts) {
		t.Error("expected .png not to match")
	}
	if !matchExtension("/x/anything", nil) {
		t.Error("empty extension list should match all")
	}
}

func TestWatcher_IngestsDroppedFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Alice"), 0755); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{root}, []string{".txt"}, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(root, "Alice", "taxi.txt")
	if err := os.WriteFile(path, []byte("Taxi $10"), 0644); err != nil {
		t.Fatal(err)
	}

	calls := rec.wait(t, 1)
	if len(calls) == 0 {
		t.Fatal("expected ingest callback")
	}
	if calls[0].employee != "Alice" {
		t.Errorf("employee = %q", calls[0].employee)
	}
	if filepath.Base(calls[0].path) != "taxi.txt" {
		t.Errorf("path = %q", calls[0].path)
	}
}

func TestWatcher_IgnoresUnmatchedExtension(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{root}, []string{".pdf"}, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "note.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) != 0 {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Bob"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Bob", "old.txt"), []byte("Hotel $90"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{root}, []string{".txt"}, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	calls := rec.wait(t, 1)
	if len(calls) != 1 || calls[0].employee != "Bob" {
		t.Errorf("calls = %v", calls)
	}
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")
	w := NewWatcher([]string{root}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root not created: %v", err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != root {
		t.Errorf("directories = %v", dirs)
	}
}
