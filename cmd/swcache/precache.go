package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var precacheCmd = &cobra.Command{
	Use:   "precache",
	Short: "Install and activate the configured release",
	Long: `Fetch the precache list from the origin into the static store of the
configured release, then activate it: stores of other releases are deleted.

Install is all-or-nothing; if any asset cannot be fetched nothing is
stored and the previous release stays in place.`,
	Args: cobra.NoArgs,
	RunE: runPrecache,
}

func init() {
	rootCmd.AddCommand(precacheCmd)
}

func runPrecache(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	w, err := openWorker(ctx, s, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Install(ctx); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	if !w.Config().SkipWaiting {
		if err := w.Activate(ctx); err != nil {
			return fmt.Errorf("activate failed: %w", err)
		}
	}

	fmt.Printf("Release:   %s\n", w.Config().Version)
	fmt.Printf("Precached: %d assets\n", len(w.Config().Precache))
	fmt.Printf("State:     %s\n", w.State())
	return nil
}
