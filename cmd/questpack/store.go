package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/questpack/pkg/quest/archive"
	"github.com/MrWong99/questpack/pkg/quest/postgres"
)

func (c *cli) storeCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Keep packages in a PostgreSQL database",
		Long: `store puts, fetches, lists and deletes packages in PostgreSQL. The database
is given with --dsn or store.postgres_dsn in the config file; the table is
created on first use.`,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default from config)")

	// open connects to the configured database. The caller closes the store.
	open := func(cmd *cobra.Command) (*postgres.Store, error) {
		if dsn == "" {
			dsn = c.cfg.Store.PostgresDSN
		}
		if dsn == "" {
			return nil, errors.New("no database configured: set --dsn or store.postgres_dsn")
		}
		return postgres.NewStore(cmd.Context(), dsn, c.archiveOptions()...)
	}

	put := &cobra.Command{
		Use:   "put PATH...",
		Short: "Store packages, replacing stored packages of the same name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := archive.LoadWorkspace(cmd.Context(), args, c.archiveOptions()...)
			if err != nil {
				return err
			}
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, p := range ws.Packages() {
				changed, err := s.Put(cmd.Context(), p)
				if err != nil {
					return err
				}
				status := "unchanged"
				if changed {
					status = "stored"
				}
				fmt.Fprintf(c.stdout, "%s: %s\n", p.Name, status)
			}
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get NAME DST",
		Short: "Write a stored package to a zip archive or a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			p, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = c.writePackage(cmd.Context(), args[1], p)
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			records, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLANGUAGE\tSIZE\tUPDATED\tCHECKSUM")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Name, orNone(r.DefaultLanguage),
					r.Size, r.UpdatedAt.Format(time.RFC3339), r.Checksum[:min(len(r.Checksum), 16)])
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME...",
		Short: "Delete stored packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			var errs []error
			for _, name := range args {
				if err := s.Delete(cmd.Context(), name); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.AddCommand(put, get, list, del)
	return cmd
}
