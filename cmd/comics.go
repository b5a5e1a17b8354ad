package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comicshelf/internal/bootstrap"
	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	"comicshelf/internal/usecase/paging"
)

var comicsCmd = &cobra.Command{
	Use:   "comics",
	Short: "List and inspect cached comics",
}

var comicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the cached window for a query, loading pages as needed",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, engine *paging.Engine) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		rawSort, _ := cmd.Flags().GetString("sort")
		pages, _ := cmd.Flags().GetInt("pages")
		refresh, _ := cmd.Flags().GetBool("refresh")

		sort, err := comic.ParseSortOrder(rawSort)
		if err != nil {
			return err
		}
		if pages <= 0 {
			pages = 1
		}

		pager, err := engine.Open(ctx, comic.Query{TitleStartsWith: title, Sort: sort})
		if err != nil {
			return errs.Wrap(err, "open pager")
		}
		if refresh {
			if err := pager.Refresh(ctx); err != nil {
				return errs.Wrap(err, "refresh")
			}
		}
		for i := 1; i < pages; i++ {
			if pager.Snapshot().States.Append == (domainpaging.NotLoading{EndOfPaginationReached: true}) {
				break
			}
			if err := pager.Append(ctx); err != nil {
				return errs.Wrapf(err, "append page %d", i+1)
			}
		}

		snap := pager.Snapshot()
		if loadType, loadErr := snap.States.FirstError(); loadErr != nil {
			return errs.Wrapf(loadErr, "%s failed", loadType)
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "query: %s\n", snap.Query); err != nil {
			return errs.Wrap(err, "write list output")
		}
		for i, item := range snap.Items {
			if _, err := fmt.Fprintf(out, "%4d  %-8d %s\n", snap.ItemsBefore+i+1, item.ID, item.Title); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		_, err = fmt.Fprintf(out, "shown %d, before %d, after %d, append %s\n",
			len(snap.Items), snap.ItemsBefore, snap.ItemsAfter, domainpaging.Describe(snap.States.Append))
		return errs.Wrap(err, "write list output")
	}),
}

var comicsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one comic, from the cache when possible",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, engine *paging.Engine) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := strconv.ParseInt(strings.TrimSpace(cmd.Flags().Arg(0)), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", comic.ErrInvalidComicID, cmd.Flags().Arg(0))
		}
		item, err := engine.Comic(ctx, id)
		if err != nil {
			return errs.Wrapf(err, "lookup comic %d", id)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d  %s\n", item.ID, item.Title)
		if url := item.Thumbnail.URL(); url != "" {
			fmt.Fprintf(&b, "thumbnail: %s\n", url)
		}
		if item.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", item.Description)
		}
		for _, c := range item.Creators {
			fmt.Fprintf(&b, "creator: %s (%s)\n", c.Name, c.Role)
		}
		for _, c := range item.Characters {
			fmt.Fprintf(&b, "character: %s\n", c.Name)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
		return errs.Wrap(err, "write show output")
	}),
}

var comicsSortsCmd = &cobra.Command{
	Use:   "sorts",
	Short: "List supported sort orders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, order := range comic.SortOrders() {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", order, order.Description()); err != nil {
				return errs.Wrap(err, "write sorts output")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(comicsCmd)
	comicsCmd.AddCommand(comicsListCmd, comicsShowCmd, comicsSortsCmd)

	comicsListCmd.Flags().String("title", "", "Title prefix filter (ignored below the minimum length)")
	comicsListCmd.Flags().String("sort", string(comic.DefaultSortOrder), "Sort order, see `comics sorts`")
	comicsListCmd.Flags().Int("pages", 1, "Number of pages to load")
	comicsListCmd.Flags().Bool("refresh", false, "Force a remote refresh before listing")
}
