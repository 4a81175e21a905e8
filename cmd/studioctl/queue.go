package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unclebandit/campaign-studio/internal/model"
)

func newQueueCmd(app *app) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List upcoming scheduled posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > 100 {
				return fmt.Errorf("--limit must be between 1 and 100")
			}

			v, err := app.vault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			posts, err := v.ListByStatus(cmd.Context(), model.StatusScheduled, app.now(), limit)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(posts)
			}
			if len(posts) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing scheduled")
				return err
			}

			now := app.now()
			for _, p := range posts {
				at := p.ScheduledAt
				if app.cfg.Location != nil {
					at = at.In(app.cfg.Location)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %s\n",
					at.Format("Mon Jan 2 15:04"),
					"("+humanize.RelTime(p.ScheduledAt, now, "ago", "from now")+")",
					p.Title); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of posts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
