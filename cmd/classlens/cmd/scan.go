package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/classlens/classlens/internal/scan"
	"github.com/classlens/classlens/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan [classpath...]",
	Short: "Scan classpath entries and build the type index",
	Long: `Decode every classfile found on the given classpath entries (directories
and jar files, in precedence order), build the relationship graph, and
persist it to .classlens/index.db.

When no entries are given, the classpath from the configuration is used.
Jar manifests with a Class-Path attribute pull in the jars they reference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		elements := args
		if len(elements) == 0 {
			elements = cfg.Classpath
		}

		fmt.Printf("Scanning %d classpath entries\n", len(elements))
		result, err := runScan(elements)
		if err != nil {
			return err
		}

		stats := result.Snapshot.Stats()
		fmt.Println()
		fmt.Printf("Scan complete!\n")
		fmt.Printf("  Entries:      %d\n", result.EntryCount)
		fmt.Printf("  Types:        %d (%d classes, %d interfaces, %d annotations)\n",
			stats.ResolvedTypes, stats.Classes, stats.Interfaces, stats.Annotations)
		fmt.Printf("  Placeholders: %d\n", stats.Placeholders)
		fmt.Printf("  Constants:    %d\n", stats.Constants)
		fmt.Printf("  Duration:     %s\n", result.Duration.Round(time.Millisecond))
		return nil
	},
}

// runScan executes one scan pass and persists its output.
func runScan(elements []string) (*scan.Result, error) {
	scanner, err := scan.New(GetConfig())
	if err != nil {
		return nil, err
	}

	result, err := scanner.Run(elements)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	for _, diag := range result.Diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %v\n", diag)
	}

	st, err := store.Open(projectDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.SaveScan(result.Graph, result.Constants, elements); err != nil {
		return nil, fmt.Errorf("saving scan: %w", err)
	}
	return result, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
