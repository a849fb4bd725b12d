package main

import (
	"context"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/loader"
	"github.com/spf13/cobra"
)

// uploadCmd loads one image through the ROM loader.
var uploadCmd = &cobra.Command{
	Use:   "spi_upload FILE",
	Short: "Load an image into hub RAM or the boot EEPROM",
	Long: `Load a .binary, .eeprom, ELF or Intel HEX image into hub RAM through the
ROM loader, optionally programming the boot EEPROM, and start it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := imageParse.Load(args[0])
		if err != nil {
			return err
		}
		open := loader.PortOpener(portConfig(), sessionOptions()...)
		return loader.Run(cmd.Context(), open, retryPolicy(), func(ctx context.Context, s *loader.Session) error {
			return s.UploadSingle(ctx, img, !noRun, eeprom)
		})
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
