package main

import (
	"context"
	"fmt"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/loader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cogFiles   [loader.MaxCogs]string
	loaderFile string
)

// multicogCmd sends one image per cog with the page protocol.
var multicogCmd = &cobra.Command{
	Use:   "multicog_spi_upload",
	Short: "Load a separate image into each of several cogs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := buildPlan(cogFiles)
		if err != nil {
			return err
		}
		var extra []loader.Option
		if loaderFile != "" {
			boot, err := imageParse.Load(loaderFile)
			if err != nil {
				return errors.Wrap(err, "page loader")
			}
			extra = append(extra, loader.WithBootstrap(boot))
		}
		open := loader.PortOpener(portConfig(), sessionOptions(extra...)...)
		return loader.Run(cmd.Context(), open, retryPolicy(), func(ctx context.Context, s *loader.Session) error {
			return s.UploadMulticog(ctx, plan, !noRun, eeprom)
		})
	},
}

// buildPlan loads the image named for each cog; empty names are skipped.
func buildPlan(files [loader.MaxCogs]string) (*loader.Plan, error) {
	plan := loader.NewPlan()
	for i, name := range files {
		if name == "" {
			continue
		}
		img, err := imageParse.Load(name)
		if err != nil {
			return nil, err
		}
		if err := plan.Add(i+1, img); err != nil {
			return nil, err
		}
	}
	if plan.Len() == 0 {
		return nil, errors.Wrap(loader.ErrInvalidPlan, "no --cogN image given")
	}
	return plan, nil
}

func init() {
	rootCmd.AddCommand(multicogCmd)
	f := multicogCmd.Flags()
	for i := range cogFiles {
		f.StringVar(&cogFiles[i], fmt.Sprintf("cog%d", i+1), "", fmt.Sprintf("Image for cog %d", i+1))
	}
	f.StringVarP(&loaderFile, "loader", "l", "", "Page loader image sent through the ROM first")
}
