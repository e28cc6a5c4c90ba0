package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/blobstore"
	"clipforge/internal/logging"
)

func newScratchCommand(ctx *commandContext) *cobra.Command {
	scratchCmd := &cobra.Command{
		Use:   "scratch",
		Short: "Scratch directory utilities",
	}
	scratchCmd.AddCommand(newScratchCleanCommand(ctx))
	return scratchCmd
}

func newScratchCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove scratch files left behind by crashed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := blobstore.New(cfg, logging.NewNop())
			removed, err := store.CleanupOlderThan(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d scratch file(s) older than %s from %s\n",
				removed, olderThan, cfg.Paths.ScratchDir)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age of scratch files to remove")
	return cmd
}
