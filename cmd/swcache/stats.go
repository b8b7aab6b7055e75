package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache stores and pending sync queues",
	Long: `Display the cache stores with their entry counts and total body size,
and the number of items waiting in each sync queue.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	names, err := w.Storage().Names(ctx)
	if err != nil {
		return fmt.Errorf("listing stores: %w", err)
	}
	current := w.Config().StoreNames()

	fmt.Printf("Release: %s\n\n", w.Config().Version)
	if len(names) == 0 {
		fmt.Println("No cache stores. Run 'swcache precache' to install the release.")
	} else {
		fmt.Printf("%-20s %8s %10s\n", "STORE", "ENTRIES", "SIZE")
	}
	for _, name := range names {
		c, err := w.Storage().Open(ctx, name)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return fmt.Errorf("listing %s: %w", name, err)
		}
		var size int64
		for _, k := range keys {
			if e, err := c.Match(ctx, k); err == nil {
				size += int64(len(e.Body))
			}
		}
		marker := ""
		if !slices.Contains(current, name) {
			marker = " (stale)"
		}
		fmt.Printf("%-20s %8d %10s%s\n", name, len(keys), formatBytes(size), marker)
	}

	pending, err := w.Pending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%-16s %8s\n", "SYNC TAG", "PENDING")
	for _, r := range w.Config().SyncRoutes {
		fmt.Printf("%-16s %8d\n", r.Tag, pending[r.Tag])
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
