package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/swcache/internal/syncqueue"
)

var syncCmd = &cobra.Command{
	Use:   "sync [tag...]",
	Short: "Replay queued offline mutations",
	Long: `Drain pending sync queues by POSTing each queued item to its endpoint.
Items that fail stay queued for the next sync. Without arguments every
configured queue is drained.

Examples:
  swcache sync
  swcache sync cart-sync order-sync`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
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

	var (
		results []syncqueue.Result
		errs    []error
	)
	if len(args) == 0 {
		results, err = w.SyncAll(ctx)
		errs = append(errs, err)
	} else {
		for _, tag := range args {
			res, err := w.Sync(ctx, tag)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", tag, err))
				continue
			}
			results = append(results, res)
		}
	}

	fmt.Printf("%-16s %9s %7s %10s\n", "TAG", "REPLAYED", "FAILED", "REMAINING")
	for _, r := range results {
		fmt.Printf("%-16s %9d %7d %10d\n", r.Tag, r.Replayed, r.Failed, r.Remaining)
	}
	return errors.Join(errs...)
}
