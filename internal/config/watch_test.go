package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnDebouncedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("name: initial\n"), 0644); err != nil {
		t.Fatalf("seed config write failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	w.debounceDur = 10 * time.Millisecond
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	if err := w.Start(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("name: updated\n"), 0644); err != nil {
		t.Fatalf("config rewrite failed: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Name != "updated" {
			t.Errorf("expected reloaded config to reflect the new name, got %q", cfg.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected onReload to fire after a debounced write")
	}
}

func TestWatcherKeepsPreviousConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("name: initial\n"), 0644); err != nil {
		t.Fatalf("seed config write failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	w.debounceDur = 10 * time.Millisecond
	defer w.Stop()

	reloadCount := make(chan struct{}, 10)
	if err := w.Start(func(cfg *Config) {
		reloadCount <- struct{}{}
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("reflection:\n  approval_mode: not-a-valid-mode\n"), 0644); err != nil {
		t.Fatalf("config rewrite failed: %v", err)
	}

	select {
	case <-reloadCount:
		t.Fatal("expected invalid config to be rejected without invoking onReload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("name: initial\n"), 0644); err != nil {
		t.Fatalf("seed config write failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	defer w.Stop()

	if err := w.Start(func(*Config) {}); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	if err := w.Start(func(*Config) {}); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("name: initial\n"), 0644); err != nil {
		t.Fatalf("seed config write failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	if err := w.Start(func(*Config) {}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	w.Stop()
	w.Stop()
}
