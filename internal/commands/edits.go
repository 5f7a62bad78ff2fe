package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nainya/parajoin/pkg/document"
)

func addRebuild(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "rebuild <file>",
		Short: "Recompute the joined text of every paragraph in a book.",
		Example: `
parajoin rebuild books/book.json
parajoin rebuild --separator " " books/book.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ed, id, done, err := ro.fileEditor(cmd, args[0])
			if err != nil {
				return ro.handleError(err)
			}
			defer done()

			sum, err := ed.Rebuild(cmd.Context(), id)
			if err != nil {
				return ro.handleError(err)
			}
			return ro.print(sum, func(w io.Writer) {
				fmt.Fprintf(w, "%d paragraphs, %d runs, %d changed, %d normalized\n",
					sum.Paragraphs, sum.Runs, sum.Changed, sum.Normalized)
			})
		},
	}

	topLevel.AddCommand(cmd)
}

func addToggle(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "toggle <file> <page> <para> <0|1>",
		Short: "Set the join flag of one paragraph and rebuild the runs it affects.",
		Example: `
parajoin toggle books/book.json 12 12_3 1
`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			var on bool
			switch args[3] {
			case "0":
			case "1":
				on = true
			default:
				return ro.handleError(fmt.Errorf("join flag must be 0 or 1, got %q", args[3]))
			}

			ed, id, done, err := ro.fileEditor(cmd, args[0])
			if err != nil {
				return ro.handleError(err)
			}
			defer done()

			key := document.Key{Page: args[1], Para: args[2]}
			ch, err := ed.Toggle(cmd.Context(), id, key, on)
			if err != nil {
				return ro.handleError(err)
			}

			out := map[string]interface{}{
				"page":     key.Page,
				"para":     key.Para,
				"no_op":    ch.NoOp,
				"rejected": ch.Rejected,
				"changed":  ch.Changed,
			}
			bases := make([]string, len(ch.Bases))
			for i, b := range ch.Bases {
				bases[i] = b.String()
			}
			out["bases"] = bases

			return ro.print(out, func(w io.Writer) {
				switch {
				case ch.NoOp:
					fmt.Fprintf(w, "%s already has join=%s\n", key, args[3])
				case ch.Rejected:
					fmt.Fprintf(w, "%s: %s no base to join to, kept as a base\n", key, color.YellowString("rejected:"))
				default:
					fmt.Fprintf(w, "%s: join=%s, rebuilt %v, %d changed\n", key, args[3], bases, ch.Changed)
				}
			})
		},
	}

	topLevel.AddCommand(cmd)
}

func addAlign(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "align <file>",
		Short: "Copy the best translation across paragraphs with identical joined text.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ed, id, done, err := ro.fileEditor(cmd, args[0])
			if err != nil {
				return ro.handleError(err)
			}
			defer done()

			n, err := ed.Align(cmd.Context(), id)
			if err != nil {
				return ro.handleError(err)
			}
			return ro.print(map[string]int{"aligned": n}, func(w io.Writer) {
				fmt.Fprintf(w, "%d paragraphs aligned\n", n)
			})
		},
	}

	topLevel.AddCommand(cmd)
}
