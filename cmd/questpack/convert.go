package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

func (c *cli) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Rewrite a package as a zip archive or a directory",
		Long: `convert loads SRC, an archive or a package directory, and writes it to DST.
DST is written as a zip archive when it ends in .zip and as a directory
otherwise. A package directory is named after its package, so a DST whose
base name differs receives the package in DST/<package>. Writing normalizes
the package: indices are compacted and keys come out in canonical order.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			p, err := archive.LoadPath(cmd.Context(), src, c.archiveOptions()...)
			if err != nil {
				return err
			}
			p.Normalize()
			written, err := c.writePackage(cmd.Context(), dst, p)
			if err != nil {
				return err
			}
			c.log.Info("package converted", "package", p.Name, "from", src, "to", written)
			return nil
		},
	}
}

// writePackage saves p to dst as a zip archive when dst ends in .zip and as a
// package directory otherwise. It returns the path written.
func (c *cli) writePackage(ctx context.Context, dst string, p *quest.Package) (string, error) {
	if strings.HasSuffix(strings.ToLower(dst), ".zip") {
		return dst, archive.SaveFile(ctx, dst, p, c.archiveOptions()...)
	}
	if filepath.Base(filepath.Clean(dst)) != p.Name {
		dst = filepath.Join(dst, p.Name)
	}
	return dst, archive.SaveDir(ctx, dst, p, c.archiveOptions()...)
}
