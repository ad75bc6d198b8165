package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/petems/stereo-recorder/internal/wavfile"
	"github.com/spf13/cobra"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show the format and sizes of WAV recordings",
		Args:  cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tCHANNELS\tRATE\tBITS\tDURATION\tDECLARED\tACTUAL\tSTATUS")

			var errs []error
			for _, path := range args {
				info, err := wavfile.Inspect(path)
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%v\n", path, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%d\t%d\t%s\n",
					path,
					info.Header.NumChannels,
					info.Header.SampleRate,
					info.Header.BitsPerSample,
					info.Duration.Round(time.Millisecond),
					info.DeclaredPayload,
					info.ActualPayload,
					status(info),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	repairCmd = &cobra.Command{
		Use:   "repair FILE...",
		Short: "Rewrite WAV size fields from the file length, recovering unfinalized recordings",
		Args:  cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				h, err := wavfile.Repair(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d payload bytes\n", path, h.DataSize)
			}
			return errors.Join(errs...)
		},
	}
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(repairCmd)
}

func status(info wavfile.Info) string {
	switch {
	case !info.Consistent():
		return "needs repair"
	case !info.Playable:
		return "unplayable"
	}
	return "ok"
}
