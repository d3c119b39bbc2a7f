package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewServicesRegistersTools(t *testing.T) {
	services := NewServices(config.Default(), quietLogger())

	if _, ok := services.Tools.Get("context_usage"); !ok {
		t.Error("context_usage not registered")
	}
	if _, ok := services.Tools.Get("get_issue"); !ok {
		t.Error("get_issue not registered")
	}
	if services.Hub != nil {
		t.Error("hub created without events_bind")
	}
	if services.Events() != nil {
		t.Error("Events() should be nil without a hub")
	}
}

func TestNewServicesCreatesHubWhenBound(t *testing.T) {
	cfg := config.Default()
	cfg.EventsBind = "127.0.0.1:0"

	services := NewServices(cfg, quietLogger())
	if services.Hub == nil || services.Events() == nil {
		t.Error("expected an event hub")
	}
}

func TestApplySwapsValvesAndCredentials(t *testing.T) {
	services := NewServices(config.Default(), quietLogger())
	before := services.Resolver.Table().Digest()

	cfg := config.Default()
	cfg.Counter.ShowStatus = false
	cfg.Counter.CustomModels = "my-model 32000"
	cfg.Jira = config.JiraConfig{BaseURL: "https://jira.example.com", Username: "u", Password: "p"}

	services.Apply(cfg)

	if services.Filter.Config().ShowStatus {
		t.Error("valves not swapped")
	}
	if !services.JiraConfig().Configured() {
		t.Error("jira credentials not swapped")
	}
	if services.Resolver.Table().Digest() == before {
		t.Error("override table not refreshed")
	}
	if got := services.Resolver.Resolve(context.Background(), "my-model"); got != 32000 {
		t.Errorf("Resolve(my-model) = %d, want 32000", got)
	}
}

func TestApplyRejectsInvalidConfig(t *testing.T) {
	services := NewServices(config.Default(), quietLogger())

	cfg := config.Default()
	cfg.Counter.BarLength = 0
	cfg.Counter.ShowStatus = false

	services.Apply(cfg)

	if !services.Filter.Config().ShowStatus {
		t.Error("invalid config was applied")
	}
}

func TestStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Counter.CustomModels = "a 1000\nb 2000"
	services := NewServices(cfg, quietLogger())

	status := services.Status("grpc")

	if status.Transport != "grpc" || status.Version != Version {
		t.Errorf("status = %+v", status)
	}
	if status.FallbackSize != config.FallbackContextSize {
		t.Errorf("FallbackSize = %d, want %d", status.FallbackSize, config.FallbackContextSize)
	}
	if status.Tools != len(services.Tools.Definitions()) {
		t.Errorf("Tools = %d", status.Tools)
	}
	if status.OverrideDigest == "" || status.CapacityEntries == 0 {
		t.Errorf("capacity fields missing: %+v", status)
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := PIDPath(filepath.Join(dir, "config.toml"))

	if pid := ReadPID(path); pid != 0 {
		t.Errorf("ReadPID(missing) = %d, want 0", pid)
	}

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile failed: %v", err)
	}
	if pid := ReadPID(path); pid != os.Getpid() {
		t.Errorf("ReadPID = %d, want %d", pid, os.Getpid())
	}

	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid := ReadPID(path); pid != 0 {
		t.Errorf("ReadPID(garbage) = %d, want 0", pid)
	}
}

func TestWorkersCancelOnFirstError(t *testing.T) {
	group, ctx := newWorkers(context.Background())
	boom := errors.New("boom")

	group.Go(func() error { return boom })
	group.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := group.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want boom", err)
	}
}
