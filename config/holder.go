package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder hands out the current configuration snapshot and replaces it when
// the file changes on disk or a SIGHUP arrives. Template settings picked up
// this way flow into the next pipeline rebuild through OnChange listeners;
// the listening socket and function endpoints are fixed for the process
// lifetime, so changes to those only log a restart hint.
type Holder struct {
	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewHolder loads the configuration at path and wraps it for hot reload.
// Watching starts separately via WatchFile and WatchSignals.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Holder{
		current: cfg,
		path:    abs,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Get returns the current snapshot. The returned value is shared and must
// be treated as read-only.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers a listener invoked with each successfully reloaded
// snapshot.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reads the file again and swaps the snapshot. A file that fails to
// load or validate leaves the previous snapshot serving and returns the
// error.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping previous config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	listeners := append([]func(*Config){}, h.listeners...)
	h.mu.Unlock()

	h.announce(prev, next)
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the config file is written. The watch covers
// the containing directory so editors that replace the file on save are
// still seen.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	h.watcher = w

	go h.watchLoop()
	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP, the conventional nudge for daemons.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("SIGHUP received, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("signal reload failed")
				}
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. The last snapshot stays readable.
func (h *Holder) Stop() {
	close(h.stopCh)
	if h.watcher != nil {
		h.watcher.Close()
	}
}

func (h *Holder) watchLoop() {
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(h.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Str("file", ev.Name).Msg("config file changed")
			if err := h.Reload(); err != nil {
				h.logger.Error().Err(err).Msg("watch reload failed")
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// announce logs which fields a reload changed, and warns when a change
// cannot take effect without a restart.
func (h *Holder) announce(prev, next *Config) {
	changed := diffFields(prev, next)
	if len(changed) == 0 {
		h.logger.Info().Msg("config reloaded, no changes")
		return
	}
	h.logger.Info().Strs("changed", changed).Msg("config reloaded")

	restart := map[string]bool{}
	for _, f := range NonReloadableFields() {
		restart[f] = true
	}
	for _, f := range changed {
		if restart[f] {
			h.logger.Warn().Str("field", f).Msg("change requires a restart to take effect")
		}
	}
}

// diffFields names the top-level config fields that differ between two
// snapshots, in the dotted form the reload docs use.
func diffFields(prev, next *Config) []string {
	var out []string
	add := func(field string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, field)
		}
	}
	add("server.host", prev.Server.Host, next.Server.Host)
	add("server.port", prev.Server.Port, next.Server.Port)
	add("template.path", prev.Template.Path, next.Template.Path)
	add("template.parameters", prev.Template.Parameters, next.Template.Parameters)
	add("template.stage", prev.Template.Stage, next.Template.Stage)
	add("template.gateway_id", prev.Template.GatewayID, next.Template.GatewayID)
	add("template.binary_media_types", prev.Template.BinaryMediaTypes, next.Template.BinaryMediaTypes)
	add("functions.endpoints", prev.Functions.Endpoints, next.Functions.Endpoints)
	add("functions.timeout", prev.Functions.Timeout, next.Functions.Timeout)
	add("cache.backend", prev.Cache.Backend, next.Cache.Backend)
	add("auth.mode", prev.Auth.Mode, next.Auth.Mode)
	add("metrics.enabled", prev.Metrics.Enabled, next.Metrics.Enabled)
	add("logging.level", prev.Logging.Level, next.Logging.Level)
	add("logging.format", prev.Logging.Format, next.Logging.Format)
	return out
}

// ReloadableFields lists the fields a reload applies without a restart:
// everything feeding the template pipeline, plus logging.
func ReloadableFields() []string {
	return []string{
		"template.path",
		"template.parameters",
		"template.stage",
		"template.gateway_id",
		"template.binary_media_types",
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields lists the fields fixed at process start: the listen
// address, the invocation backends, and the cache/auth/metrics wiring.
func NonReloadableFields() []string {
	return []string{
		"server.host",
		"server.port",
		"functions.endpoints",
		"functions.timeout",
		"cache.backend",
		"auth.mode",
		"metrics.enabled",
	}
}
