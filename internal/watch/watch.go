// Package watch polls a quest package on disk and reloads it when it changes.
//
// The path may be a zip archive or an unpacked package directory. Every poll
// first compares modification times; only when they moved is the content
// hashed with BLAKE3, so touching a file without changing it does not reload.
// A reload that fails keeps the last good package, and readiness reports the
// failure until a later reload succeeds.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/MrWong99/questpack/internal/lint"
	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

// Reload statuses recorded to metrics.
const (
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusUnchanged = "unchanged"
)

// ErrNotLoaded is reported by [Watcher.Ready] before the first successful
// load.
var ErrNotLoaded = errors.New("watch: package not loaded")

// Result describes one completed reload.
type Result struct {
	Package  *quest.Package
	Findings []lint.Finding
	Err      error
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithInterval sets the polling interval. The default is 2 seconds.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLinter lints every loaded package with l. Without a linter no
// findings are produced.
func WithLinter(l *lint.Linter) Option {
	return func(w *Watcher) { w.linter = l }
}

// WithArchiveOptions passes opts to every load.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(w *Watcher) { w.loadOpts = append(w.loadOpts, opts...) }
}

// WithMetrics records reloads to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// OnReload registers fn to be called after every reload attempt that found
// changed content, successful or not. fn runs on the polling goroutine.
func OnReload(fn func(Result)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher holds the most recently loaded package of one path.
type Watcher struct {
	path     string
	interval time.Duration
	linter   *lint.Linter
	loadOpts []archive.Option
	metrics  *observe.Metrics
	logger   *slog.Logger
	onReload func(Result)

	mu       sync.RWMutex
	current  *quest.Package
	findings []lint.Finding
	lastErr  error
	loadedAt time.Time

	// loadedHash is the content hash current was loaded from.
	loadedHash [32]byte

	// last known state for change detection, only touched by Check.
	lastMtime time.Time
	lastHash  [32]byte
	seen      bool
}

// New returns a watcher for path. Nothing is read until [Watcher.Check] or
// [Watcher.Run] is called.
func New(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		interval: 2 * time.Second,
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Current returns the last good package and its findings. The package is nil
// before the first successful load. Callers must not modify either.
func (w *Watcher) Current() (*quest.Package, []lint.Finding) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.findings
}

// LoadedAt returns when the current package was loaded.
func (w *Watcher) LoadedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loadedAt
}

// Ready returns nil when the most recent load attempt succeeded. It has the
// shape of a health check.
func (w *Watcher) Ready(context.Context) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.lastErr != nil {
		return w.lastErr
	}
	if w.current == nil {
		return ErrNotLoaded
	}
	return nil
}

// Run checks the path immediately and then once per interval until ctx is
// cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check polls the path once and reloads it when its content changed. It
// reports whether a reload was attempted. Check must not run concurrently
// with itself or with [Watcher.Run].
func (w *Watcher) Check(ctx context.Context) bool {
	log := observe.LoggerFrom(ctx, w.logger).With("path", w.path)

	mtime, err := modTime(w.path)
	if err != nil {
		w.fail(ctx, fmt.Errorf("watch: stat %s: %w", w.path, err))
		log.Warn("watch: cannot stat package", "err", err)
		return true
	}
	if w.seen && mtime.Equal(w.lastMtime) {
		return false
	}

	sum, err := hashPath(w.path)
	if err != nil {
		w.fail(ctx, fmt.Errorf("watch: hash %s: %w", w.path, err))
		log.Warn("watch: cannot read package", "err", err)
		return true
	}
	if w.seen && sum == w.lastHash {
		w.lastMtime = mtime
		// The content current was loaded from is back; clear a stale stat
		// or read failure.
		w.mu.Lock()
		if w.current != nil && w.loadedHash == sum {
			w.lastErr = nil
		}
		w.mu.Unlock()
		w.metrics.RecordReload(ctx, StatusUnchanged)
		return false
	}

	p, err := archive.LoadPath(ctx, w.path, w.loadOpts...)
	if err != nil {
		w.fail(ctx, err)
		log.Warn("watch: reload failed, keeping last good package", "err", err)
		// Content that failed to load is not retried until it changes again.
		w.seen, w.lastMtime, w.lastHash = true, mtime, sum
		return true
	}
	w.seen, w.lastMtime, w.lastHash = true, mtime, sum

	var findings []lint.Finding
	if w.linter != nil {
		findings = w.linter.Lint(ctx, p)
	}

	w.mu.Lock()
	first := w.current == nil
	w.current = p
	w.findings = findings
	w.lastErr = nil
	w.loadedHash = sum
	w.loadedAt = time.Now()
	w.mu.Unlock()

	if first {
		w.metrics.PackagesLoaded.Add(ctx, 1)
	}
	w.metrics.RecordReload(ctx, StatusOK)
	counts := lint.Count(findings)
	log.Info("watch: package loaded",
		"package", p.Name,
		"errors", counts[lint.SeverityError],
		"warnings", counts[lint.SeverityWarning],
		"infos", counts[lint.SeverityInfo],
	)
	if w.onReload != nil {
		w.onReload(Result{Package: p, Findings: findings})
	}
	return true
}

func (w *Watcher) fail(ctx context.Context, err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	w.metrics.RecordReload(ctx, StatusFailed)
	if w.onReload != nil {
		w.onReload(Result{Err: err})
	}
}

// ── change detection ─────────────────────────────────────────────────────────

// modTime returns the modification time of a file, or the latest one of any
// file below a directory.
func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	if !info.IsDir() {
		return info.ModTime(), nil
	}
	latest := info.ModTime()
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
		return nil
	})
	return latest, err
}

// hashPath returns the BLAKE3-256 sum of a file, or of the relative names
// and contents of every file below a directory in lexical order.
func hashPath(path string) ([32]byte, error) {
	var sum [32]byte
	h := blake3.New()

	info, err := os.Stat(path)
	if err != nil {
		return sum, err
	}
	if !info.IsDir() {
		if err := hashFile(h, path); err != nil {
			return sum, err
		}
		copy(sum[:], h.Sum(nil))
		return sum, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	slices.Sort(files)
	for _, f := range files {
		rel, err := filepath.Rel(path, f)
		if err != nil {
			return sum, err
		}
		_, _ = io.WriteString(h, filepath.ToSlash(rel)+"\x00")
		if err := hashFile(h, f); err != nil {
			return sum, err
		}
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
