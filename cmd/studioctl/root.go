package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Campaign Studio operator tool",
		Long:          "studioctl manages the Campaign Studio vault schema and previews the posting schedule from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newMigrateCmd(app),
		newNextSlotCmd(app),
		newQueueCmd(app),
	)

	return rootCmd
}
