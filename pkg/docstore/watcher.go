package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docchat-be/internal/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports sessions whose files under a LocalStore root were changed
// by something other than the service, e.g. an operator copying files in.
type Watcher struct {
	root     string
	fw       *fsnotify.Watcher
	logger   logger.ILogger
	onChange func(session string)
}

func NewWatcher(root string, logger logger.ILogger, onChange func(session string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{root: root, fw: fw, logger: logger, onChange: onChange}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.addSessionDir(filepath.Join(root, entry.Name()))
		}
	}
	return w, nil
}

// Run dispatches events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("DOCSTORE_WATCHER", "Watcher error", map[string]interface{}{"error": err})
		}
	}
}

func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	session := parts[0]

	if len(parts) == 1 {
		// a session directory appeared or went away
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.addSessionDir(event.Name)
			}
		}
		w.onChange(session)
		return
	}

	if strings.HasPrefix(parts[len(parts)-1], tempPrefix) {
		return
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	w.onChange(session)
}

func (w *Watcher) addSessionDir(path string) {
	if err := w.fw.Add(path); err != nil {
		w.logger.Warn("DOCSTORE_WATCHER", "Failed to watch session dir", map[string]interface{}{
			"path":  path,
			"error": err,
		})
	}
}
