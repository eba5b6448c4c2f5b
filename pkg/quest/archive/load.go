package archive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/flatten"
)

// Source labels recorded with metrics and spans.
const (
	sourceZip = "zip"
	sourceDir = "dir"
)

// Load reads a package from the zip archive in r.
//
// The package name is the first path segment of the main.yml entry. Load
// fails with [ErrPackageNotFound] when any of the six fixed files is missing,
// with a [*flatten.ParseError] for malformed YAML and with a [*KeyError]
// wrapping [quest.ErrInvalidIdentifier] for a blank entity key.
func Load(ctx context.Context, r io.ReaderAt, size int64, opts ...Option) (*quest.Package, error) {
	o := buildOptions(opts)
	return load(ctx, sourceZip, o, func() (*source, error) {
		// Backslash separated names make the reader report an insecure path
		// alongside a usable reader. Names are only matched, never used as
		// file system paths, so such archives are read anyway.
		zr, err := zip.NewReader(r, size)
		if zr == nil {
			return nil, fmt.Errorf("archive: open zip: %w", err)
		}
		src := newSource()
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			src.classify(f.Name, func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(rc)
			})
		}
		return src, nil
	})
}

// LoadFile is [Load] for the zip archive at path.
func LoadFile(ctx context.Context, path string, opts ...Option) (*quest.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}
	return Load(ctx, f, info.Size(), opts...)
}

// LoadDir reads a package unpacked on disk. dir is the package directory
// itself; its base name is the package name. Conversation files are applied
// in the order listed by conversations/order, as written by [SaveDir];
// conversations it does not list follow in file name order.
func LoadDir(ctx context.Context, dir string, opts ...Option) (*quest.Package, error) {
	o := buildOptions(opts)
	return load(ctx, sourceDir, o, func() (*source, error) {
		dir = filepath.Clean(dir)
		name := filepath.Base(dir)
		src := newSource()

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("archive: read dir %s: %w", dir, err)
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			path := filepath.Join(dir, de.Name())
			src.classify(name+"/"+de.Name(), readFile(path))
		}

		convDir := filepath.Join(dir, conversationDir)
		convs, err := os.ReadDir(convDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("archive: read dir %s: %w", convDir, err)
		}
		rank, err := readOrder(filepath.Join(convDir, orderFile))
		if err != nil {
			return nil, err
		}
		sortByRank(convs, rank)
		for _, de := range convs {
			if de.IsDir() {
				continue
			}
			path := filepath.Join(convDir, de.Name())
			src.classify(name+"/"+conversationDir+"/"+de.Name(), readFile(path))
		}
		return src, nil
	})
}

// LoadPath loads a directory with [LoadDir] and anything else with
// [LoadFile].
func LoadPath(ctx context.Context, path string, opts ...Option) (*quest.Package, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(ctx, path, opts...)
	}
	return LoadFile(ctx, path, opts...)
}

// readOrder maps each conversation ID listed in the order file at path to its
// line. A missing file yields an empty map.
func readOrder(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read conversation order: %w", err)
	}
	rank := make(map[string]int)
	for line := range strings.Lines(string(data)) {
		id := strings.TrimSpace(line)
		if _, dup := rank[id]; id == "" || dup {
			continue
		}
		rank[id] = len(rank)
	}
	return rank, nil
}

// sortByRank puts listed conversation files first, in rank order, and keeps
// the remaining ones in their existing order.
func sortByRank(entries []os.DirEntry, rank map[string]int) {
	pos := func(de os.DirEntry) int {
		if r, ok := rank[strings.TrimSuffix(de.Name(), ymlExt)]; ok && strings.HasSuffix(de.Name(), ymlExt) {
			return r
		}
		return len(rank)
	}
	slices.SortStableFunc(entries, func(a, b os.DirEntry) int {
		return cmp.Compare(pos(a), pos(b))
	})
}

func readFile(path string) func() ([]byte, error) {
	return func() ([]byte, error) { return os.ReadFile(path) }
}

// load runs collect and decodes its result inside an "archive.Load" span,
// recording the outcome to the configured metrics.
func load(ctx context.Context, kind string, o options, collect func() (*source, error)) (p *quest.Package, err error) {
	ctx, span := observe.StartSpan(ctx, "archive.Load",
		trace.WithAttributes(attribute.String("archive.source", kind)),
	)
	defer observe.EndSpan(span, &err)
	log := observe.LoggerFrom(ctx, o.logger)
	start := time.Now()

	warn := func(w error) {
		log.Warn("archive: load warning", "err", w)
		if o.warn != nil {
			o.warn(w)
		}
	}

	src, err := collect()
	if err == nil {
		p, err = decode(ctx, src, warn)
	}
	if err != nil {
		o.metrics.RecordLoadError(ctx, failureReason(err))
		return nil, err
	}

	elapsed := time.Since(start)
	counts := make(map[string]int)
	for k, n := range p.Counts() {
		counts[string(k)] = n
	}
	o.metrics.RecordLoad(ctx, kind, elapsed, counts)
	span.SetAttributes(attribute.String("quest.package", p.Name))
	log.Debug("archive: package loaded",
		"package", p.Name,
		"source", kind,
		"conversations", p.Conversations.Len(),
		"default_language", p.DefaultLanguage,
		"duration", elapsed,
	)
	return p, nil
}

// failureReason classifies a load error for the load error counter.
func failureReason(err error) string {
	var pe *flatten.ParseError
	switch {
	case errors.Is(err, ErrPackageNotFound):
		return "package_not_found"
	case errors.As(err, &pe):
		return "parse"
	case errors.Is(err, quest.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, zip.ErrFormat):
		return "format"
	default:
		return "io"
	}
}
