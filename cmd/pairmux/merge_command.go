package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pairmux/internal/merge"
	"pairmux/internal/session"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "merge <video> <audio>",
		Short: "Merge one video and one audio file without re-encoding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.consoleLogger(cfg)
			if err != nil {
				return err
			}

			videoPath, audioPath := args[0], args[1]
			outputPath := outputFlag
			if outputPath == "" {
				outputPath = filepath.Join(cfg.Paths.OutputDir, session.OutputName(time.Now(), filepath.Ext(videoPath)))
			}

			// Manual merges keep their inputs regardless of the cleanup policy.
			dispatcher, err := merge.New(cfg.FFmpeg.Binary, cfg.FFmpeg.MergeTimeout, false, logger)
			if err != nil {
				return err
			}

			if err := dispatcher.Merge(cmd.Context(), merge.Request{
				VideoPath:  videoPath,
				AudioPath:  audioPath,
				OutputPath: outputPath,
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path (defaults to the output directory)")
	return cmd
}
