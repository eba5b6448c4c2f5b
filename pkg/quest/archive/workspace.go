package archive

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/questpack/pkg/quest"
)

// LoadWorkspace loads every path with [LoadPath] concurrently and returns a
// workspace holding the packages in path order. If any load fails, the
// remaining loads are cancelled and the first error is returned. Two paths
// holding packages of the same name fail with [quest.ErrDuplicateID].
func LoadWorkspace(ctx context.Context, paths []string, opts ...Option) (*quest.Workspace, error) {
	pkgs := make([]*quest.Package, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		eg.Go(func() error {
			p, err := LoadPath(egCtx, path, opts...)
			if err != nil {
				return fmt.Errorf("archive: load workspace: %s: %w", path, err)
			}
			pkgs[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	ws, err := quest.NewWorkspace(pkgs...)
	if err != nil {
		return nil, fmt.Errorf("archive: load workspace: %w", err)
	}
	return ws, nil
}
