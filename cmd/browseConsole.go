package cmd

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"comicshelf/internal/bootstrap"
	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	"comicshelf/internal/errs"
	"comicshelf/internal/usecase/browseconsole"
	"comicshelf/internal/usecase/paging"
)

var consoleBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Start the comics browser",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, engine *paging.Engine) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		rawSort, _ := cmd.Flags().GetString("sort")
		rows, _ := cmd.Flags().GetInt("rows")
		sort, err := comic.ParseSortOrder(rawSort)
		if err != nil {
			return err
		}

		model := browseconsole.NewBrowseModel(ctx, engine, browseconsole.Options{
			Filter:      title,
			Sort:        sort,
			VisibleRows: rows,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run browse console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleBrowseCmd)
	consoleBrowseCmd.Flags().String("title", "", "Initial title prefix filter")
	consoleBrowseCmd.Flags().String("sort", string(comic.DefaultSortOrder), "Initial sort order")
	consoleBrowseCmd.Flags().Int("rows", 15, "Visible rows")
}
