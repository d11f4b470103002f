// Package watch ingests batch files dropped into a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wjkennedy/cjm/internal/ingest"
	"github.com/wjkennedy/cjm/internal/journey"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 200 * time.Millisecond

// Ingester is the part of ingest.Pipeline the watcher needs.
type Ingester interface {
	Ingest(ctx context.Context, batch journey.Batch) (ingest.Result, error)
}

// Outcome reports what happened to one dropped file.
type Outcome struct {
	Path   string
	Result ingest.Result
	Err    error
}

// Options configures a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnIngest, if set, is called after every attempted file.
	OnIngest func(Outcome)
}

// Watcher ingests .json, .yaml and .yml files created or rewritten in one
// directory. Subdirectories are not watched. A file that fails to decode or
// ingest is logged and skipped; the watcher keeps running.
type Watcher struct {
	dir  string
	in   Ingester
	opts Options
}

// New creates a watcher for dir. It does not start watching until Run.
func New(dir string, in Ingester, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{dir: dir, in: in, opts: opts}
}

// Run watches until ctx is cancelled. Files still pending at cancellation are
// dropped. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.opts.Logger.Info("watching for batches", "dir", w.dir)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, err := ingest.FormatFromPath(event.Name); err != nil {
				continue
			}
			pending[event.Name] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.flush(ctx, pending)
			pending = make(map[string]struct{})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", "dir", w.dir, "error", err)
		}
	}
}

// flush ingests pending files in name order.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		out := w.ingestFile(ctx, p)
		if out.Err != nil {
			w.opts.Logger.Error("dropped batch rejected", "file", filepath.Base(p), "error", out.Err)
		} else {
			w.opts.Logger.Info("dropped batch ingested", "file", filepath.Base(p), "run_id", out.Result.RunID)
		}
		if w.opts.OnIngest != nil {
			w.opts.OnIngest(out)
		}
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) Outcome {
	out := Outcome{Path: path}
	batch, err := ingest.DecodeFile(path)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result, out.Err = w.in.Ingest(ctx, batch)
	return out
}
