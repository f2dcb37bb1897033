package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the editor write/rename bursts that fsnotify
// reports into a single reload.
const reloadDebounce = 500 * time.Millisecond

// Watch re-reads the config file whenever it changes and calls onReload
// with the freshly loaded config. Invalid configs are warn-logged and
// skipped; the previous config stays in effect. Watch blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var timer *time.Timer
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Warn("config reload failed, keeping previous config",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return
		}
		slog.Info("config reloaded",
			slog.Float64("semantic_weight", cfg.Search.SemanticWeight),
			slog.Float64("lexical_weight", cfg.Search.LexicalWeight),
			slog.Bool("rerank_enabled", cfg.Rerank.Enabled))
		onReload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
