package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/pkg/quest"
)

// Save writes p to w as a zip archive with every file under a directory named
// after the package. Loading the result yields a package equal to p, provided
// p was normalized.
func Save(ctx context.Context, w io.Writer, p *quest.Package, opts ...Option) error {
	o := buildOptions(opts)
	return save(ctx, sourceZip, p, o, func(files []file) error {
		zw := zip.NewWriter(w)
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     p.Name + "/" + f.name,
				Method:   zip.Deflate,
				Modified: o.modTime,
			})
			if err != nil {
				return fmt.Errorf("archive: save %s: %w", f.name, err)
			}
			if _, err := fw.Write(f.data); err != nil {
				return fmt.Errorf("archive: save %s: %w", f.name, err)
			}
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("archive: save: %w", err)
		}
		return nil
	})
}

// SaveFile is [Save] to the file at path. The archive is written to a
// temporary file next to path and renamed over it once complete.
func SaveFile(ctx context.Context, path string, p *quest.Package, opts ...Option) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".questpack-*.zip")
	if err != nil {
		return fmt.Errorf("archive: save %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = Save(ctx, tmp, p, opts...); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("archive: save %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("archive: save %s: %w", path, err)
	}
	return nil
}

// SaveDir writes p unpacked into dir, which becomes the package directory.
// The conversation index order is kept in conversations/order. Conversation
// files in dir that p no longer holds are removed so that loading dir again
// yields p.
func SaveDir(ctx context.Context, dir string, p *quest.Package, opts ...Option) error {
	o := buildOptions(opts)
	return save(ctx, sourceDir, p, o, func(files []file) error {
		convDir := filepath.Join(dir, conversationDir)
		if err := os.MkdirAll(convDir, 0o755); err != nil {
			return fmt.Errorf("archive: save dir: %w", err)
		}
		keep := make(map[string]bool, len(files))
		var order strings.Builder
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, filepath.FromSlash(f.name))
			keep[path] = true
			if err := os.WriteFile(path, f.data, 0o644); err != nil {
				return fmt.Errorf("archive: save dir: %w", err)
			}
			if id, ok := strings.CutPrefix(f.name, conversationDir+"/"); ok {
				order.WriteString(strings.TrimSuffix(id, ymlExt))
				order.WriteByte('\n')
			}
		}
		if err := os.WriteFile(filepath.Join(convDir, orderFile), []byte(order.String()), 0o644); err != nil {
			return fmt.Errorf("archive: save dir: %w", err)
		}

		stale, err := os.ReadDir(convDir)
		if err != nil {
			return fmt.Errorf("archive: save dir: %w", err)
		}
		var errs []error
		for _, de := range stale {
			path := filepath.Join(convDir, de.Name())
			if de.IsDir() || !strings.HasSuffix(de.Name(), ymlExt) || keep[path] {
				continue
			}
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("archive: save dir: remove stale conversations: %w", errors.Join(errs...))
		}
		return nil
	})
}

// save encodes p and hands the files to write inside an "archive.Save" span.
func save(ctx context.Context, kind string, p *quest.Package, o options, write func([]file) error) (err error) {
	ctx, span := observe.StartSpan(ctx, "archive.Save",
		trace.WithAttributes(
			attribute.String("archive.source", kind),
			attribute.String("quest.package", p.Name),
		),
	)
	defer observe.EndSpan(span, &err)
	start := time.Now()

	files, err := encode(p)
	if err != nil {
		return err
	}
	if err = write(files); err != nil {
		return err
	}

	elapsed := time.Since(start)
	o.metrics.RecordSave(ctx, kind, elapsed)
	observe.LoggerFrom(ctx, o.logger).Debug("archive: package saved",
		"package", p.Name,
		"source", kind,
		"files", len(files),
		"duration", elapsed,
	)
	return nil
}
