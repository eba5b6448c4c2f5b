package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/questpack/internal/lint"
	"github.com/MrWong99/questpack/internal/suggest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

func (c *cli) lintCmd() *cobra.Command {
	var (
		failOn    string
		workspace []string
	)
	cmd := &cobra.Command{
		Use:   "lint PATH",
		Short: "Check a package for broken references and unreachable options",
		Long: `lint loads a package and reports undefined references, options no
conversation can reach, missing default texts and similar problems.

Packages given with --workspace (or lint.workspace in the config file) are
loaded alongside so that references into them can be checked. The command
exits with status 2 when a finding at or above --fail-on is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if failOn == "" {
				failOn = c.cfg.Lint.FailOn
			}
			threshold, err := lint.ParseSeverity(failOn)
			if err != nil {
				return err
			}

			paths := append([]string{args[0]}, c.cfg.Lint.Workspace...)
			paths = append(paths, workspace...)
			ws, err := archive.LoadWorkspace(cmd.Context(), paths, c.archiveOptions()...)
			if err != nil {
				return err
			}
			p := ws.Packages()[0]

			linter := lint.New(
				lint.WithWorkspace(ws),
				lint.WithLogger(c.log),
				lint.WithMatcher(suggest.New(
					suggest.WithPhoneticThreshold(c.cfg.Lint.PhoneticThreshold),
					suggest.WithFuzzyThreshold(c.cfg.Lint.FuzzyThreshold),
				)),
			)
			findings := linter.Lint(cmd.Context(), p)
			for _, f := range findings {
				fmt.Fprintln(c.stdout, f)
			}
			counts := lint.Count(findings)
			fmt.Fprintf(c.stdout, "%s: %d errors, %d warnings, %d infos\n", p.Name,
				counts[lint.SeverityError], counts[lint.SeverityWarning], counts[lint.SeverityInfo])

			if n := len(lint.AtLeast(findings, threshold)); n > 0 {
				return &exitError{code: exitFindings, msg: fmt.Sprintf("%d findings at or above %s", n, threshold)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "", "lowest severity that fails the command: info, warning or error (default from config)")
	cmd.Flags().StringSliceVar(&workspace, "workspace", nil, "additional package archives or directories to resolve references against")
	return cmd
}
