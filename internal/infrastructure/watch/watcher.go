package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change describes the last filesystem event of a settled burst.
type Change struct {
	Path string
	Op   string // create, write, remove or rename
}

// Follower watches a single file. It watches the parent directory so the
// file may be created, replaced or removed while followed.
type Follower struct {
	path     string
	filter   *PatternFilter
	debounce time.Duration
	onChange func(Change)
}

// NewFollower follows path. onChange runs on the Run goroutine once per
// burst of changes.
func NewFollower(path string, debounce time.Duration, onChange func(Change)) *Follower {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Follower{
		path:     path,
		filter:   ForFile(path),
		debounce: debounce,
		onChange: onChange,
	}
}

// Run blocks until ctx is done. It returns nil on cancellation.
func (f *Follower) Run(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	debouncer := NewDebouncer(f.debounce)
	defer debouncer.Stop()

	var last Change
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			op := opName(event.Op)
			if op == "" || !f.filter.Matches(event.Name) {
				continue
			}
			last = Change{Path: event.Name, Op: op}
			debouncer.Trigger()
		case <-debouncer.C:
			if f.onChange != nil {
				f.onChange(last)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
