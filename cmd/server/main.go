package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "forest-agent",
	Short: "Forest Admin agent for GORM models",
	Long: `Serves the Forest Admin chart routes over the demo shop models and
publishes their apimap to Forest Admin.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory holding forest.yaml")
	rootCmd.AddCommand(serveCmd, apimapCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
