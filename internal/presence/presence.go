// Package presence feeds the charger's input-present flag from a file
// maintained by the host (typically a udev helper that writes "1" when a
// charger cable is attached and "0" when it is removed).
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Sink receives presence changes.
type Sink interface {
	SetPresent(ctx context.Context, present bool) error
}

// Parse decodes the presence file. Besides the strconv booleans it accepts
// the power_supply "online"/"offline" words. An empty file means absent.
func Parse(data []byte) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(string(data)))
	switch s {
	case "", "offline", "absent":
		return false, nil
	case "online", "present":
		return true, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("presence: bad value %q", s)
	}
	return v, nil
}

// Watcher pushes the content of a presence file into a Sink whenever the
// file changes.
type Watcher struct {
	path string
	sink Sink
}

// New creates a watcher for path.
func New(path string, sink Sink) *Watcher {
	return &Watcher{path: path, sink: sink}
}

// Sync reads the file once and forwards its value. A missing file counts as
// absent.
func (w *Watcher) Sync(ctx context.Context) error {
	data, err := os.ReadFile(w.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("presence: read %s: %w", w.path, err)
	}
	present, err := Parse(data)
	if err != nil {
		return err
	}
	slog.Debug("presence: file read", "path", w.path, "present", present)
	return w.sink.SetPresent(ctx, present)
}

// Run syncs once and then on every change to the file until ctx is done.
// The parent directory is watched so the file may be replaced by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("presence: create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("presence: watch %s: %w", filepath.Dir(w.path), err)
	}
	slog.Info("presence: watching", "path", w.path)

	if err := w.Sync(ctx); err != nil {
		slog.Warn("presence: initial sync failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Sync(ctx); err != nil {
				slog.Warn("presence: sync failed", "err", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("presence: watcher error", "err", err)
		}
	}
}
