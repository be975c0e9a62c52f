package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"codenerd-cognitive/internal/agent"
	"codenerd-cognitive/internal/config"
)

func TestDefaultConfigAgentStopsPromptly(t *testing.T) {
	logger = zap.NewNop()
	t.Chdir(t.TempDir())

	configPath = "does-not-exist.yaml"
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	a, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("agent.New returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected agent.Stop to return promptly")
	}
}
