package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "chartctl",
	Short:        "render forex charts from the command line",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (defaults when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
