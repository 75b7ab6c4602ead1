package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/samgate/config"
)

func writeHolderConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
}

const holderBase = `
template:
  path: "template.yaml"
  stage: "dev"
`

func newHolder(t *testing.T, path string) *config.Holder {
	t.Helper()
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	t.Cleanup(h.Stop)
	return h
}

func TestHolder_Get(t *testing.T) {
	h := newHolder(t, writeHolderConfig(t, holderBase))

	cfg := h.Get()
	if cfg == nil {
		t.Fatal("Get returned nil")
	}
	if cfg.Template.Path != "template.yaml" {
		t.Errorf("Template.Path = %q, want %q", cfg.Template.Path, "template.yaml")
	}
	if cfg.Template.Stage != "dev" {
		t.Errorf("Template.Stage = %q, want %q", cfg.Template.Stage, "dev")
	}
}

func TestHolder_ReloadSwapsSnapshot(t *testing.T) {
	path := writeHolderConfig(t, holderBase)
	h := newHolder(t, path)

	rewrite(t, path, `
template:
  path: "template.yaml"
  stage: "prod"
`)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := h.Get().Template.Stage; got != "prod" {
		t.Errorf("Stage after reload = %q, want %q", got, "prod")
	}
}

func TestHolder_ReloadKeepsPreviousOnError(t *testing.T) {
	path := writeHolderConfig(t, holderBase)
	h := newHolder(t, path)

	// template.path is required, so this snapshot must be rejected.
	rewrite(t, path, `
server:
  port: 3000
`)
	if err := h.Reload(); err == nil {
		t.Fatal("Reload accepted an invalid config")
	}
	if got := h.Get().Template.Path; got != "template.yaml" {
		t.Errorf("Template.Path after failed reload = %q, want previous %q", got, "template.yaml")
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeHolderConfig(t, holderBase)
	h := newHolder(t, path)

	var mu sync.Mutex
	var got *config.Config
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})

	rewrite(t, path, `
template:
  path: "other.yaml"
`)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatal("listener was not invoked")
	}
	if got.Template.Path != "other.yaml" {
		t.Errorf("listener saw Template.Path = %q, want %q", got.Template.Path, "other.yaml")
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeHolderConfig(t, holderBase)
	h := newHolder(t, path)

	var mu sync.Mutex
	calls := 0
	h.OnChange(func(*config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	rewrite(t, path, `
template:
  path: "watched.yaml"
`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Get().Template.Path == "watched.yaml" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := h.Get().Template.Path; got != "watched.yaml" {
		t.Fatalf("Template.Path after watch = %q, want %q", got, "watched.yaml")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("watch did not invoke listeners")
	}
}

func TestHolder_ConcurrentGetAndReload(t *testing.T) {
	path := writeHolderConfig(t, holderBase)
	h := newHolder(t, path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("Get returned nil")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	fields := config.ReloadableFields()
	for _, want := range []string{"template.path", "template.stage", "logging.level"} {
		if !contains(fields, want) {
			t.Errorf("ReloadableFields missing %q", want)
		}
	}
}

func TestNonReloadableFields(t *testing.T) {
	fields := config.NonReloadableFields()
	for _, want := range []string{"server.host", "server.port", "functions.endpoints", "cache.backend", "auth.mode"} {
		if !contains(fields, want) {
			t.Errorf("NonReloadableFields missing %q", want)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
