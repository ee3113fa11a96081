package main

import (
	"fmt"
	"os"

	"github.com/panodraw/annotator/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "panodraw"

var configDir string

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Polygon and freehand annotation for an embedded panorama viewer",
	Long: `panodraw connects to the page hosting the panorama viewer, keeps the
annotation state for its overlay and mirrors finished shapes into the viewer
as hotspots. Shape commands can be journaled to memory, SQLite or Postgres.`,
	Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// defaults are registered even when the file is missing
		if err := config.Load(configDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage", "", "journal backend (memory, sqlite, postgres, none)")
	_ = viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("storage.type", rootCmd.PersistentFlags().Lookup("storage"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
