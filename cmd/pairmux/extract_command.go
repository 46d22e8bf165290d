package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairmux/internal/capture"
	"pairmux/internal/media"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <capture-file>",
		Short: "Show the best video and audio URLs in a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.consoleLogger(cfg)
			if err != nil {
				return err
			}

			extractor := capture.NewExtractor(logger)
			selection, err := extractor.ExtractBestFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "video (itag %d, rank %d, %d bytes):\n  %s\n",
				selection.Video.FormatID,
				selection.Video.QualityRank,
				selection.Video.DeclaredSize,
				media.NormalizeURL(selection.Video.URL))
			fmt.Fprintf(out, "audio (itag %d, rank %d, %d bytes):\n  %s\n",
				selection.Audio.FormatID,
				selection.Audio.QualityRank,
				selection.Audio.DeclaredSize,
				media.NormalizeURL(selection.Audio.URL))
			return nil
		},
	}
}
