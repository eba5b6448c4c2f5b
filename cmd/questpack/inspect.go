package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

func (c *cli) inspectCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "Print a summary of a package archive or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := archive.LoadPath(cmd.Context(), args[0], c.archiveOptions()...)
			if err != nil {
				return err
			}
			if lang == "" {
				lang = p.DefaultLanguage
			}
			return printSummary(c.stdout, p, lang)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language to display texts in (default: the package's default language)")
	return cmd
}

func printSummary(w io.Writer, p *quest.Package, lang string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "package:\t%s\n", p.Name)
	fmt.Fprintf(tw, "default language:\t%s\n", orNone(p.DefaultLanguage))

	counts := p.Counts()
	kinds := make([]quest.Kind, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	fmt.Fprintln(tw, "\nentities:")
	for _, k := range kinds {
		fmt.Fprintf(tw, "  %s\t%d\n", k, counts[k])
	}

	if p.Conversations.Len() > 0 {
		fmt.Fprintln(tw, "\nconversations:")
		for _, conv := range p.Conversations.All() {
			start := make([]string, len(conv.Start))
			for i, r := range conv.Start {
				start[i] = r.Target.ID
			}
			fmt.Fprintf(tw, "  %s\t%q\tstart: %s\tnpc: %d\tplayer: %d\n",
				conv.ID, conv.Quester.Resolve(lang), orNone(strings.Join(start, ", ")),
				conv.NpcOptions.Len(), conv.PlayerOptions.Len())
		}
	}
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
