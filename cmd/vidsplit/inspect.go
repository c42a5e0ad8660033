package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdougie/vidsplit/internal/node"
)

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the available output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := a.catalog()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEXTENSION\tWIDGETS")
			for _, f := range catalog.Formats {
				names := make([]string, len(f.Widgets))
				for i, wd := range f.Widgets {
					names[i] = wd.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Extension, strings.Join(names, ","))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSource: %s\n", catalog.Source)
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [node-id]",
		Short: "Print a node's input and output schema as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(false)
			if err != nil {
				return err
			}

			id := node.SplitCombineID
			if len(args) == 1 {
				id = args[0]
			}
			n, ok := p.registry.Get(id)
			if !ok {
				return fmt.Errorf("unknown node %q, available: %s", id, strings.Join(p.registry.IDs(), ", "))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(n.Schema())
		},
	}
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded split runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, release, err := a.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer release()

			runs, err := l.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tPREFIX\tFORMAT\tFRAMES\tPARTS\tFILES")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Prefix, r.Format,
					r.Frames, len(r.Parts), len(r.Filenames))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}
