package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classlens/classlens/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `Load the persisted index and serve the structural query surface as a
JSON API (/api/subclasses, /api/implementing, /api/annotated, ...).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := loadSnapshot()
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{Port: servePort})
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}
		srv.SetResult(snapshot)

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8572, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
