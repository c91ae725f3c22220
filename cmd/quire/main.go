package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quire",
	Short: "EPUB library server",
	Long: `quire imports EPUB books into a local library and serves their
chapters, table of contents and resources over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "configuration file (default: built-in)")
	rootCmd.AddCommand(serveCmd, importCmd, libraryCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
