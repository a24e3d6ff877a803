package catalog

import (
	"context"
	"os"
	"time"
)

// Watcher polls the config directory and calls onChange once per scan in which any
// file was added, modified or removed.
type Watcher struct {
	paths     Paths
	interval  time.Duration
	onChange  func(changed []string)
	lastMTime map[string]time.Time
}

// NewWatcher creates a watcher over the loader's directory.
func NewWatcher(paths Paths, interval time.Duration, onChange func(changed []string)) *Watcher {
	return &Watcher{
		paths:     paths,
		interval:  interval,
		onChange:  onChange,
		lastMTime: make(map[string]time.Time),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	// prime cache
	w.scan()
	for {
		select {
		case <-ticker.C:
			if changed := w.scan(); len(changed) > 0 && w.onChange != nil {
				w.onChange(changed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// scan records current mtimes and returns paths that differ from the previous scan.
func (w *Watcher) scan() []string {
	files, err := w.paths.BannerFiles()
	if err != nil {
		return nil
	}
	files = append(files, w.paths.DefaultsPath())

	current := make(map[string]time.Time, len(files))
	for _, p := range files {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		current[p] = fi.ModTime()
	}

	var changed []string
	for p, mt := range current {
		if last, ok := w.lastMTime[p]; !ok || !mt.Equal(last) {
			changed = append(changed, p)
		}
	}
	for p := range w.lastMTime {
		if _, ok := current[p]; !ok {
			changed = append(changed, p)
		}
	}
	w.lastMTime = current
	return changed
}
