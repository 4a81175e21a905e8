package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unclebandit/campaign-studio/internal/scheduler"
)

type slotOutput struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Weekday     string    `json:"weekday"`
	Bucket      string    `json:"bucket"`
	Offset      int       `json:"offset"`
}

func newNextSlotCmd(app *app) *cobra.Command {
	var offset, count int
	var asJSON, offline bool

	cmd := &cobra.Command{
		Use:   "next-slot",
		Short: "Preview the next optimal posting slots",
		Long:  "next-slot anchors on the latest scheduled post in the vault and prints the slots a batch would receive. With --offline, or when the vault cannot be reached, slots start from now.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if offset < 0 {
				return fmt.Errorf("--offset must be non-negative")
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			log := app.logger(cmd.ErrOrStderr())
			var lookup scheduler.LatestLookup
			if !offline {
				v, err := app.vault(cmd.Context())
				if err != nil {
					log.Warn().Err(err).Msg("studioctl: vault unavailable, anchoring on now")
				} else {
					defer v.Close()
					lookup = v
				}
			}
			planner := app.planner(lookup, log)

			var slots []scheduler.Slot
			if count == 1 {
				slots = planner.Next(cmd.Context(), offset).Slots
			} else {
				// Batch spacing already starts at offset 0.
				slots = planner.Batch(cmd.Context(), count).Slots
			}

			out := make([]slotOutput, len(slots))
			for i, s := range slots {
				out[i] = slotOutput{
					ScheduledAt: s.At,
					Weekday:     s.At.Weekday().String(),
					Bucket:      string(s.Window.Bucket),
					Offset:      s.Offset,
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, s := range out {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s %s\n",
					s.ScheduledAt.Format("2006-01-02 15:04 MST"), s.Weekday, s.Bucket); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "batch offset in days (single slot only)")
	cmd.Flags().IntVar(&count, "count", 1, "number of slots in the batch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the vault lookup and anchor on now")
	cmd.MarkFlagsMutuallyExclusive("offset", "count")
	return cmd
}
