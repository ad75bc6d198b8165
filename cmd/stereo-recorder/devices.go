package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/spf13/cobra"
)

var (
	argDevicesBackend string

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if argDevicesBackend != "" {
				cfg.Audio.Backend = argDevicesBackend
			}

			backend, err := audio.New(cfg.Audio)
			if err != nil {
				return err
			}
			defer backend.Close()

			devices, err := backend.ListDevices()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEFAULT\tNAME")
			for _, d := range devices {
				mark := ""
				if d.Default {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\n", mark, d.Name)
			}
			return w.Flush()
		},
	}
)

func init() {
	devicesCmd.Flags().StringVarP(&argDevicesBackend, "backend", "b", "", "Audio backend: portaudio, malgo or sim")
	rootCmd.AddCommand(devicesCmd)
}
