package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classlens/classlens/internal/config"
)

var (
	cfgFile    string
	projectDir string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "classlens",
	Short: "classlens - query JVM type relationships without loading classes",
	Long: `classlens scans classpath entries (directories and jar files), decodes
the classfiles it finds, and builds a graph of the structural relationships
between types: which classes extend which, which classes implement which
interfaces, and which types carry which annotations, meta-annotations
included.

No class is ever loaded: everything is read straight from the classfile
binary format, so scanning is safe to run against untrusted code.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./classlens.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "directory holding the .classlens index")
}

func GetConfig() *config.Config {
	return cfg
}
