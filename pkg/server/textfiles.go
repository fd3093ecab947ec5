package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TextFiles holds cached text file contents served at connection lifecycle
// points. Reads may come from any goroutine; the watcher reloads in place.
type TextFiles struct {
	dir string
	log *zap.SugaredLogger

	mu      sync.RWMutex
	Connect string // connect.txt, shown on connect
	Motd    string // motd.txt, shown after login
}

// trackedFiles lists the files read from the text directory.
var trackedFiles = []struct {
	Name string
	Desc string
}{
	{"connect.txt", "welcome screen"},
	{"motd.txt", "post-login MOTD"},
}

func (tf *TextFiles) GetConnect() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.Connect }
func (tf *TextFiles) GetMotd() string    { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.Motd }

// loadFile reads a single text file, returning empty string on any error.
func loadFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// LoadTextFiles reads text files from dir. Missing or empty files result in
// empty strings (no error).
func LoadTextFiles(dir string, log *zap.SugaredLogger) *TextFiles {
	tf := &TextFiles{dir: dir, log: log}
	count := 0
	for _, f := range trackedFiles {
		if tf.reload(f.Name) {
			count++
		}
	}
	log.Infof("Loaded %d text files from %s", count, dir)
	return tf
}

// reload re-reads one tracked file and reports whether it is non-empty.
func (tf *TextFiles) reload(name string) bool {
	text := loadFile(tf.dir, name)
	tf.mu.Lock()
	defer tf.mu.Unlock()
	switch name {
	case "connect.txt":
		tf.Connect = text
	case "motd.txt":
		tf.Motd = text
	}
	return text != ""
}

// Watch reloads tracked files when they change on disk and calls onChange
// with a description of the file. It returns when ctx is done.
func (tf *TextFiles) Watch(ctx context.Context, onChange func(desc string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("text file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(tf.dir); err != nil {
		tf.log.Warnf("Could not watch text directory %s: %v", tf.dir, err)
		return nil
	}
	tf.log.Infof("Watching text directory for changes: %s", tf.dir)

	descs := make(map[string]string, len(trackedFiles))
	for _, f := range trackedFiles {
		descs[f.Name] = fmt.Sprintf("%s (%s)", f.Name, f.Desc)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			desc, tracked := descs[name]
			if !tracked {
				continue
			}
			tf.reload(name)
			tf.log.Infof("Text file reloaded: %s", desc)
			if onChange != nil {
				onChange(desc)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			tf.log.Warnf("Text file watcher error: %v", err)
		}
	}
}
