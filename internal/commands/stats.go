package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nainya/parajoin/internal/editor"
	"github.com/nainya/parajoin/internal/logger"
	"github.com/nainya/parajoin/pkg/repo"
)

func addStats(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Show join and translation status counts of a book.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ed, id, done, err := ro.fileEditor(cmd, args[0])
			if err != nil {
				return ro.handleError(err)
			}
			defer done()

			st, err := ed.Stats(cmd.Context(), id)
			if err != nil {
				return ro.handleError(err)
			}
			return ro.print(st, func(w io.Writer) {
				fmt.Fprintln(w, statsTable(st))
			})
		},
	}

	topLevel.AddCommand(cmd)
}

func statsTable(st editor.Stats) *uitable.Table {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Pages"), st.Pages)
	tbl.AddRow(bold.Sprint("Paragraphs"), st.Paragraphs)
	tbl.AddRow(bold.Sprint("Bases"), st.Bases)
	tbl.AddRow(bold.Sprint("Continuations"), st.Continuations)
	tbl.AddRow("", "")
	tbl.AddRow(bold.Sprint("none"), st.Counts.None)
	tbl.AddRow(bold.Sprint("auto"), st.Counts.Auto)
	tbl.AddRow(bold.Sprint("draft"), st.Counts.Draft)
	tbl.AddRow(bold.Sprint("fixed"), st.Counts.Fixed)
	tbl.RightAlign(1)
	return tbl
}

func addList(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books in the data directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := ro.loadConfig(cmd)
			if err != nil {
				return ro.handleError(err)
			}
			r, err := repo.New(repo.Options{Dir: cfg.DataDir, BackupDir: cfg.BackupDir})
			if err != nil {
				return ro.handleError(err)
			}
			ed, err := editor.New(editor.Config{
				Repo:   r,
				Logger: logger.NewLogger(logger.Config{Level: cfg.LogLevel, Output: io.Discard}),
			})
			if err != nil {
				return ro.handleError(err)
			}

			ids, err := ed.List()
			if err != nil {
				return ro.handleError(err)
			}
			rows := make([]map[string]interface{}, 0, len(ids))
			for _, id := range ids {
				st, err := ed.Stats(cmd.Context(), id)
				if err != nil {
					return ro.handleError(err)
				}
				rows = append(rows, map[string]interface{}{"id": id, "paragraphs": st.Paragraphs, "fixed": st.Counts.Fixed})
			}

			return ro.print(rows, func(w io.Writer) {
				bold := color.New(color.Bold)
				tbl := uitable.New()
				tbl.Separator = "  "
				tbl.AddRow(bold.Sprint("Book"), bold.Sprint("Paragraphs"), bold.Sprint("Fixed"))
				for _, row := range rows {
					tbl.AddRow(filepath.Join(cfg.DataDir, row["id"].(string)+".json"), row["paragraphs"], row["fixed"])
				}
				fmt.Fprintln(w, tbl)
			})
		},
	}
	cmd.Flags().String("data-dir", "", "Directory holding the book files.")

	topLevel.AddCommand(cmd)
}
