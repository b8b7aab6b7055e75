package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache store",
	Long: `Delete every cache store, of every release. Pending sync queues are
kept. The next request or 'swcache precache' repopulates the stores.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
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

	n, err := w.ClearCaches(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d cache stores.\n", n)
	return nil
}
