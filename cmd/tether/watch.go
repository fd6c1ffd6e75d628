package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/sambeau/tether/pkg/tether/detect"
	"github.com/sambeau/tether/pkg/tether/manifest"
	"github.com/sambeau/tether/pkg/tether/repl"
	"github.com/sambeau/tether/pkg/tether/watch"
)

// watcher owns the detector for `tether watch`. Reloads replace the
// manifest's context; the detector is rebuilt only when the bindings
// themselves change.
type watcher struct {
	env *env
	out io.Writer

	mu       sync.Mutex
	detector *detect.Detector
	sources  []string
}

func (e *env) watchManifest(ctx context.Context, out io.Writer) error {
	w := &watcher{env: e, out: out}
	if err := w.rebuild(e.manifest); err != nil {
		return err
	}
	w.pass()

	fw, err := watch.New(e.manifest.Path, e.cfg.Watch.Debounce, e.logger, w.reload)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer fw.Close()
	return fw.Run(ctx)
}

// reload re-reads the manifest and runs a detection pass. A manifest that
// fails to load is reported and the previous one stays in use.
func (w *watcher) reload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := manifest.Load(path, w.env.closures)
	if err != nil {
		w.env.logger.Errorf("%v", err)
		return
	}
	w.env.logger.Infof("reloaded %s", path)

	if !slices.Equal(bindingSources(m), w.sources) {
		if err := w.rebuild(m); err != nil {
			w.env.logger.Errorf("%v", err)
			return
		}
	}
	w.env.manifest = m
	w.passLocked()
}

func (w *watcher) rebuild(m *manifest.Manifest) error {
	d, err := w.env.newDetector(m)
	if err != nil {
		return err
	}
	w.detector = d
	w.sources = bindingSources(m)
	return nil
}

func (w *watcher) pass() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.passLocked()
}

func (w *watcher) passLocked() {
	changes := w.detector.DetectChanges(w.env.manifest.Context)
	if len(changes) == 0 {
		fmt.Fprintln(w.out, "(no changes)")
		return
	}
	for _, c := range changes {
		repl.PrintChange(w.out, c)
	}
}

// bindingSources identifies a manifest's bindings by key and source text.
func bindingSources(m *manifest.Manifest) []string {
	out := make([]string, len(m.Bindings))
	for i, b := range m.Bindings {
		if b.HasName() {
			out[i] = b.Key + " -> " + b.Name
			continue
		}
		out[i] = b.Key + " = " + b.Expression.Source
	}
	return out
}
