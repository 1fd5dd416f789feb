package main

import (
	"github.com/spf13/cobra"

	"github.com/RowanDark/internpool/report"
)

var showCmd = &cobra.Command{
	Use:   "show REPORT...",
	Short: "Print JSON run reports in the selected format",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cleanup, err := prepare(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		writer, err := report.NewWriter(cmd.OutOrStdout(), cfg.Format, cfg.JSONPretty)
		if err != nil {
			return err
		}
		defer writer.Close()

		for _, path := range args {
			runs, err := report.LoadRuns(path)
			if err != nil {
				return err
			}
			for _, run := range runs {
				if err := writer.WriteRun(run); err != nil {
					return err
				}
			}
		}
		return nil
	},
}
