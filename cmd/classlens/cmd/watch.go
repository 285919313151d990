package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classlens/classlens/internal/scan"
)

var watchCmd = &cobra.Command{
	Use:   "watch [classpath...]",
	Short: "Rescan automatically when classpath entries change",
	Long: `Run an initial scan, then watch the classpath entries and rerun the scan
whenever their contents change. Each completed scan atomically replaces the
persisted index.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		elements := args
		if len(elements) == 0 {
			elements = cfg.Classpath
		}

		if _, err := runScan(elements); err != nil {
			return err
		}
		fmt.Printf("Watching %d classpath entries (Ctrl-C to stop)\n", len(elements))

		watcher, err := scan.NewWatcher(elements, 0)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer watcher.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		changes := watcher.Start(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				start := time.Now()
				result, err := runScan(elements)
				if err != nil {
					// A failed pass publishes nothing; the previous
					// index stays in place.
					fmt.Fprintf(os.Stderr, "rescan failed: %v\n", err)
					continue
				}
				stats := result.Snapshot.Stats()
				fmt.Printf("Rescanned %d entries, %d types (%s)\n",
					result.EntryCount, stats.ResolvedTypes, time.Since(start).Round(time.Millisecond))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
